package api

import (
	"github.com/go-chi/chi/v5"
)

// setupAPIRoutes sets up /api routes
func (s *RESTServer) setupAPIRoutes(r chi.Router) {
	r.Get("/", s.HandleRoot)

	// Devices
	r.Route("/devices", func(r chi.Router) {
		r.Get("/", s.HandleListDevices)
		r.Post("/register", s.HandleRegisterDevice)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.HandleGetDevice)
			r.Put("/", s.HandleUpdateDevice)
			r.Delete("/", s.HandleDeleteDevice)
			r.Get("/config", s.HandleGetDeviceConfig)
			r.Get("/preview", s.HandlePreviewDevice)
		})
	})

	// Landing pages
	r.Route("/landing-pages", func(r chi.Router) {
		r.Get("/", s.HandleListLandingPages)
		r.Post("/", s.HandleCreateLandingPage)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.HandleGetLandingPage)
			r.Put("/", s.HandleUpdateLandingPage)
			r.Delete("/", s.HandleDeleteLandingPage)
			r.Post("/assign-devices", s.HandleAssignDevices)
		})
	})

	r.Get("/stats", s.HandleStats)
	r.Get("/events", s.HandleListEvents)
}
