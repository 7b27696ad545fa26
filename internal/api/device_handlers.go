package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/inmapper/kiosk-server/internal/kiosk"
	"github.com/inmapper/kiosk-server/internal/models"
)

// HandleRegisterDevice registers a kiosk by fingerprint or refreshes the
// existing record
func (s *RESTServer) HandleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Fingerprint string            `json:"fingerprint" validate:"required,max=512"`
		DeviceInfo  models.DeviceInfo `json:"deviceInfo"`
	}

	if !s.decodeJSON(w, r, &req) {
		return
	}

	log.Debug().
		Str("fingerprint", req.Fingerprint).
		Str("origin", r.Header.Get("Origin")).
		Msg("Device registration request")

	device, err := s.kiosk.Identity.Resolve(r.Context(), kiosk.Registration{
		Fingerprint: req.Fingerprint,
		DeviceInfo:  req.DeviceInfo,
		IPAddress:   clientIP(r),
	})
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"device": device,
	})
}

// HandleGetDeviceConfig serves a kiosk's poll
func (s *RESTServer) HandleGetDeviceConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.kiosk.Config.GetConfig(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, cfg)
}

// HandlePreviewDevice returns the page a device would show, falling back to
// the default page
func (s *RESTServer) HandlePreviewDevice(w http.ResponseWriter, r *http.Request) {
	page, err := s.kiosk.LandingPages.Preview(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"landingPage": page,
	})
}

// HandleListDevices lists active devices
func (s *RESTServer) HandleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.kiosk.Devices.List(r.Context())
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	if devices == nil {
		devices = []*models.Device{}
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"devices": devices,
	})
}

// HandleGetDevice gets a device
func (s *RESTServer) HandleGetDevice(w http.ResponseWriter, r *http.Request) {
	device, err := s.kiosk.Devices.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"device": device,
	})
}

// HandleUpdateDevice updates a device
func (s *RESTServer) HandleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     *string          `json:"name" validate:"max=100"`
		Location *models.Location `json:"location"`
		Tags     *[]string        `json:"tags"`
	}

	if !s.decodeJSON(w, r, &req) {
		return
	}

	device, err := s.kiosk.Devices.Update(r.Context(), chi.URLParam(r, "id"), kiosk.DevicePatch{
		Name:     req.Name,
		Location: req.Location,
		Tags:     req.Tags,
	})
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"device": device,
	})
}

// HandleDeleteDevice soft-deletes a device
func (s *RESTServer) HandleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	if err := s.kiosk.Devices.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondServiceError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{
		"message": "Device deleted successfully",
	})
}
