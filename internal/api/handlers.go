package api

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/inmapper/kiosk-server/internal/kiosk"
	"github.com/inmapper/kiosk-server/internal/models"
	"github.com/inmapper/kiosk-server/internal/storage"
	"github.com/inmapper/kiosk-server/internal/validation"
)

// Event log paging
const (
	defaultEventLimit = 20
	maxEventLimit     = 200
)

// ========== Service handlers ==========

// HandleHealth reports liveness
func (s *RESTServer) HandleHealth(w http.ResponseWriter, r *http.Request) {
	database := "connected"
	if err := s.store.Ping(r.Context()); err != nil {
		database = "disconnected"
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(s.started).Seconds(),
		"database":  database,
	})
}

// HandleReady reports whether the store is reachable
func (s *RESTServer) HandleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		log.Warn().Err(err).Msg("Readiness check failed")
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "not ready",
			"database": "disconnected",
		})
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{
		"status":   "ready",
		"database": "connected",
	})
}

// HandleRoot describes the API
func (s *RESTServer) HandleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"name":     s.config.Server.Name,
		"version":  s.config.Server.Version,
		"database": s.config.Database.Driver,
		"endpoints": map[string]string{
			"devices":      "/api/devices",
			"landingPages": "/api/landing-pages",
			"stats":        "/api/stats",
			"events":       "/api/events",
			"health":       "/health",
			"ready":        "/ready",
		},
	})
}

// HandleStats returns fleet statistics
func (s *RESTServer) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.kiosk.Stats.Stats(r.Context())
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, stats)
}

// HandleListEvents lists recorded events, newest first
func (s *RESTServer) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 {
		limit = defaultEventLimit
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}
	offset, _ := strconv.Atoi(q.Get("offset"))
	if offset < 0 {
		offset = 0
	}

	filters := storage.EventLogFilters{}

	// Parse filters
	if deviceID := q.Get("device_id"); deviceID != "" {
		filters.DeviceID = &deviceID
	}

	if pageID := q.Get("landing_page_id"); pageID != "" {
		filters.LandingPageID = &pageID
	}

	if eventType := q.Get("type"); eventType != "" {
		modelEventType := models.EventType(eventType)
		filters.Type = &modelEventType
	}

	if raw := q.Get("start_time"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid start_time")
			return
		}
		filters.StartTime = &t
	}

	if raw := q.Get("end_time"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid end_time")
			return
		}
		filters.EndTime = &t
	}

	events, total, err := s.store.ListEventLogs(ctx, filters, limit, offset)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list events")
		s.respondError(w, http.StatusInternalServerError, "Failed to list events")
		return
	}
	if events == nil {
		events = []*models.EventLog{}
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"total":  total,
	})
}

// ========== Helper functions ==========

// respondJSON responds with JSON
func (s *RESTServer) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

// respondError responds with error
func (s *RESTServer) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondServiceError maps a core error onto its HTTP status
func (s *RESTServer) respondServiceError(w http.ResponseWriter, err error) {
	var verr *kiosk.ValidationError
	var ferr *validation.FieldError
	var serr *kiosk.StorageError

	switch {
	case errors.As(err, &verr):
		s.respondJSON(w, http.StatusBadRequest, map[string]string{
			"error": verr.Error(),
			"field": verr.Field,
		})
	case errors.As(err, &ferr):
		s.respondJSON(w, http.StatusBadRequest, map[string]string{
			"error": ferr.Error(),
			"field": ferr.Field,
		})
	case errors.Is(err, kiosk.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "Not found")
	case errors.As(err, &serr):
		log.Error().Err(serr.Err).Str("op", serr.Op).Msg("Storage failure")
		s.respondError(w, http.StatusInternalServerError, "Internal server error")
	default:
		log.Error().Err(err).Msg("Request failed")
		s.respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// decodeJSON reads the request body into dst and validates it. It writes the
// error response itself and reports whether the handler should continue.
func (s *RESTServer) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}

	if err := s.validator.Validate(dst); err != nil {
		s.respondServiceError(w, err)
		return false
	}

	return true
}

// clientIP returns the request's remote host. RealIP has already applied
// X-Forwarded-For and X-Real-IP.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
