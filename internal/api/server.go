package api

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/inmapper/kiosk-server/internal/config"
	"github.com/inmapper/kiosk-server/internal/kiosk"
	"github.com/inmapper/kiosk-server/internal/storage"
	"github.com/inmapper/kiosk-server/internal/validation"
)

// maxBodyBytes bounds request bodies; slide lists are the largest payloads
const maxBodyBytes = 1 << 20

// RESTServer represents the REST API server
type RESTServer struct {
	config    *config.Config
	store     storage.Store
	kiosk     *kiosk.Services
	validator *validation.Validator
	router    chi.Router
	server    *http.Server
	started   time.Time
}

// NewRESTServer creates a new REST API server
func NewRESTServer(cfg *config.Config, store storage.Store, services *kiosk.Services) *RESTServer {
	s := &RESTServer{
		config:    cfg,
		store:     store,
		kiosk:     services,
		validator: validation.NewValidator(),
		router:    chi.NewRouter(),
		started:   time.Now(),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures all routes
func (s *RESTServer) setupRoutes() {
	// Middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.CORS.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Requested-With"},
		ExposedHeaders: []string{"Link"},
		MaxAge:         300,
	}))

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.respondError(w, http.StatusNotFound, "Not found")
	})

	s.router.Get("/health", s.HandleHealth)
	s.router.Get("/ready", s.HandleReady)

	s.router.Route("/api", func(r chi.Router) {
		s.setupAPIRoutes(r)
	})
}

// Handler returns the API router, fronted by the static admin UI when the
// web directory exists.
func (s *RESTServer) Handler() http.Handler {
	webDir := s.config.Web.StaticDir

	if _, err := os.Stat(webDir); os.IsNotExist(err) {
		log.Warn().Str("dir", webDir).Msg("Web directory not found, Web UI will not be available")
		return s.router
	}

	log.Info().Str("dir", webDir).Msg("Serving Web UI from directory")

	fs := http.FileServer(http.Dir(webDir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isAPIPath(r.URL.Path) {
			s.router.ServeHTTP(w, r)
			return
		}

		// Paths without an extension belong to the admin UI's client routes
		if r.URL.Path == "/" || !strings.Contains(filepath.Base(r.URL.Path), ".") {
			http.ServeFile(w, r, filepath.Join(webDir, "index.html"))
			return
		}

		fs.ServeHTTP(w, r)
	})
}

func isAPIPath(p string) bool {
	return p == "/api" || strings.HasPrefix(p, "/api/") || p == "/health" || p == "/ready"
}

// ListenAndServe starts the server
func (s *RESTServer) ListenAndServe(addr string) error {
	s.server.Addr = addr

	log.Info().Str("addr", addr).Msg("Starting REST API server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *RESTServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// requestLogger logs each request once it completes
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		event := log.Info()
		if ww.Status() >= http.StatusInternalServerError {
			event = log.Error()
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("requestId", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
