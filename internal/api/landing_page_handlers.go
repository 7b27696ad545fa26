package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/inmapper/kiosk-server/internal/kiosk"
	"github.com/inmapper/kiosk-server/internal/models"
)

// HandleListLandingPages lists active landing pages, newest first
func (s *RESTServer) HandleListLandingPages(w http.ResponseWriter, r *http.Request) {
	pages, err := s.kiosk.LandingPages.List(r.Context())
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	if pages == nil {
		pages = []*models.LandingPage{}
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"landingPages": pages,
	})
}

// HandleGetLandingPage gets a landing page
func (s *RESTServer) HandleGetLandingPage(w http.ResponseWriter, r *http.Request) {
	page, err := s.kiosk.LandingPages.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"landingPage": page,
	})
}

// HandleCreateLandingPage creates a landing page
func (s *RESTServer) HandleCreateLandingPage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name               string             `json:"name" validate:"required,max=200"`
		Description        string             `json:"description"`
		Slides             []kiosk.SlideInput `json:"slides"`
		TransitionDuration *int               `json:"transitionDuration"`
		TransitionEffect   string             `json:"transitionEffect"`
		Styling            *models.Styling    `json:"styling"`
		Tags               []string           `json:"tags"`
		IsDefault          bool               `json:"isDefault"`
	}

	if !s.decodeJSON(w, r, &req) {
		return
	}

	in := kiosk.LandingPageInput{
		Name:             req.Name,
		Description:      req.Description,
		Slides:           req.Slides,
		TransitionEffect: req.TransitionEffect,
		Styling:          req.Styling,
		Tags:             req.Tags,
		IsDefault:        req.IsDefault,
	}
	if req.TransitionDuration != nil {
		in.TransitionDuration = *req.TransitionDuration
	}

	page, err := s.kiosk.LandingPages.Create(r.Context(), in)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"landingPage": page,
	})
}

// HandleUpdateLandingPage applies a partial update to a landing page
func (s *RESTServer) HandleUpdateLandingPage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name               *string             `json:"name"`
		Description        *string             `json:"description"`
		Slides             *[]kiosk.SlideInput `json:"slides"`
		TransitionDuration *int                `json:"transitionDuration"`
		TransitionEffect   *string             `json:"transitionEffect"`
		Styling            *models.Styling     `json:"styling"`
		Tags               *[]string           `json:"tags"`
		IsDefault          *bool               `json:"isDefault"`
		DeviceIDs          *[]string           `json:"deviceIds"`
	}

	if !s.decodeJSON(w, r, &req) {
		return
	}

	page, err := s.kiosk.LandingPages.Update(r.Context(), chi.URLParam(r, "id"), kiosk.LandingPagePatch{
		Name:               req.Name,
		Description:        req.Description,
		Slides:             req.Slides,
		TransitionDuration: req.TransitionDuration,
		TransitionEffect:   req.TransitionEffect,
		Styling:            req.Styling,
		Tags:               req.Tags,
		IsDefault:          req.IsDefault,
		DeviceIDs:          req.DeviceIDs,
	})
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"landingPage": page,
	})
}

// HandleDeleteLandingPage soft-deletes a landing page
func (s *RESTServer) HandleDeleteLandingPage(w http.ResponseWriter, r *http.Request) {
	if err := s.kiosk.LandingPages.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondServiceError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{
		"message": "Landing page deleted successfully",
	})
}

// HandleAssignDevices replaces the device set of a landing page
func (s *RESTServer) HandleAssignDevices(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DeviceIDs []string `json:"deviceIds" validate:"required"`
	}

	if !s.decodeJSON(w, r, &req) {
		return
	}

	page, err := s.kiosk.Assignments.Assign(r.Context(), chi.URLParam(r, "id"), req.DeviceIDs)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"landingPage": page,
	})
}
