package kiosk

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/inmapper/kiosk-server/internal/events"
	"github.com/inmapper/kiosk-server/internal/models"
	"github.com/inmapper/kiosk-server/internal/storage"
)

// Seeded when the store holds no landing page at all
const (
	seedPageName   = "Default Landing Page"
	seedSlideImage = "https://images.unsplash.com/photo-1441986300917-64674bd600d8?w=1920&q=80"
	seedSlideTitle = "Welcome"
)

// LandingPageInput describes a new landing page
type LandingPageInput struct {
	Name               string
	Description        string
	Slides             []SlideInput
	TransitionDuration int
	TransitionEffect   string
	Styling            *models.Styling
	Tags               []string
	IsDefault          bool
}

// LandingPagePatch carries a partial update. Nil fields are left unchanged;
// Slides and DeviceIDs replace the whole list when set.
type LandingPagePatch struct {
	Name               *string
	Description        *string
	Slides             *[]SlideInput
	TransitionDuration *int
	TransitionEffect   *string
	Styling            *models.Styling
	Tags               *[]string
	IsDefault          *bool
	DeviceIDs          *[]string
}

// LandingPageService handles operator writes on landing pages
type LandingPageService struct {
	store           storage.Store
	assignments     *AssignmentResolver
	publisher       events.Publisher
	now             func() time.Time
	defaultDuration int
}

// NewLandingPageService creates a landing page service
func NewLandingPageService(store storage.Store, assignments *AssignmentResolver, publisher events.Publisher, now func() time.Time, defaultDuration int) *LandingPageService {
	return &LandingPageService{
		store:           store,
		assignments:     assignments,
		publisher:       publisher,
		now:             now,
		defaultDuration: defaultDuration,
	}
}

func validateDuration(ms int) error {
	if ms < models.MinTransitionDuration || ms > models.MaxTransitionDuration {
		return invalid("transitionDuration", "must be between %d and %d",
			models.MinTransitionDuration, models.MaxTransitionDuration)
	}
	return nil
}

func parseEffect(s string) (models.TransitionEffect, error) {
	if s == "" {
		return models.TransitionSlide, nil
	}
	e := models.TransitionEffect(s)
	if !e.Valid() {
		return "", invalid("transitionEffect", "must be one of fade, slide, zoom")
	}
	return e, nil
}

func validateStyling(s models.Styling) error {
	if s.OverlayOpacity < 0 || s.OverlayOpacity > 1 {
		return invalid("styling.overlayOpacity", "must be between 0 and 1")
	}
	return nil
}

// Create validates in and stores a new active landing page. A page created
// as default demotes every other page in the same transaction.
func (s *LandingPageService) Create(ctx context.Context, in LandingPageInput) (*models.LandingPage, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("name", "name is required")
	}

	duration := in.TransitionDuration
	if duration == 0 {
		duration = s.defaultDuration
	}
	if err := validateDuration(duration); err != nil {
		return nil, err
	}

	effect, err := parseEffect(in.TransitionEffect)
	if err != nil {
		return nil, err
	}

	styling := models.DefaultStyling
	if in.Styling != nil {
		styling = *in.Styling
		if err := validateStyling(styling); err != nil {
			return nil, err
		}
	}

	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}

	page := &models.LandingPage{
		Name:               name,
		Description:        in.Description,
		DeviceIDs:          []string{},
		Slides:             NormalizeSlides(in.Slides),
		TransitionDuration: duration,
		TransitionEffect:   effect,
		Styling:            styling,
		Tags:               tags,
		IsDefault:          in.IsDefault,
		IsActive:           true,
	}

	err = s.assignments.saveWithDefault(ctx, page, func(tx storage.Store) error {
		if err := tx.CreateLandingPage(ctx, page); err != nil {
			return &StorageError{Op: "create landing page", Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("landingPageId", page.ID).
		Str("name", page.Name).
		Bool("isDefault", page.IsDefault).
		Int("slides", len(page.Slides)).
		Msg("Landing page created")

	publish(ctx, s.publisher, &models.Event{
		Type:          models.EventTypeLandingPageCreated,
		LandingPageID: page.ID,
		Description:   "Landing page created",
		OccurredAt:    s.now(),
		Details:       models.Variables{"name": page.Name, "isDefault": page.IsDefault},
	})

	return page, nil
}

// Update applies patch to landing page id. Every field is validated before
// the first write; content and device changes commit in one transaction.
func (s *LandingPageService) Update(ctx context.Context, id string, patch LandingPagePatch) (*models.LandingPage, error) {
	var (
		name   string
		effect models.TransitionEffect
		ids    []string
		err    error
	)

	if patch.Name != nil {
		name = strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, invalid("name", "name must not be empty")
		}
	}
	if patch.TransitionDuration != nil {
		if err := validateDuration(*patch.TransitionDuration); err != nil {
			return nil, err
		}
	}
	if patch.TransitionEffect != nil {
		if effect, err = parseEffect(*patch.TransitionEffect); err != nil {
			return nil, err
		}
	}
	if patch.Styling != nil {
		if err := validateStyling(*patch.Styling); err != nil {
			return nil, err
		}
	}
	if patch.DeviceIDs != nil {
		if *patch.DeviceIDs == nil {
			return nil, invalid("deviceIds", "deviceIds must be an array")
		}
		if ids, err = normalizeDeviceIDs(*patch.DeviceIDs); err != nil {
			return nil, err
		}
		if err := s.assignments.checkAssignable(ctx, ids); err != nil {
			return nil, err
		}
	}

	page, err := s.store.GetLandingPage(ctx, id)
	if err != nil {
		return nil, storeErr("get landing page", err)
	}
	// Deleted pages accept content edits but never devices
	if patch.DeviceIDs != nil && !page.IsActive {
		return nil, storeErr("get landing page", storage.ErrNotFound)
	}

	if patch.Name != nil {
		page.Name = name
	}
	if patch.Description != nil {
		page.Description = *patch.Description
	}
	if patch.TransitionDuration != nil {
		page.TransitionDuration = *patch.TransitionDuration
	}
	if patch.TransitionEffect != nil {
		page.TransitionEffect = effect
	}
	if patch.Styling != nil {
		page.Styling = *patch.Styling
	}
	if patch.Tags != nil {
		page.Tags = append([]string{}, (*patch.Tags)...)
	}
	if patch.IsDefault != nil {
		page.IsDefault = *patch.IsDefault
	}
	if patch.Slides != nil {
		page.Slides = NormalizeSlides(*patch.Slides)
	}

	err = s.assignments.saveWithDefault(ctx, page, func(tx storage.Store) error {
		if err := tx.UpdateLandingPage(ctx, page); err != nil {
			return storeErr("update landing page", err)
		}
		if patch.DeviceIDs == nil {
			return nil
		}
		updated, err := s.assignments.setDevices(ctx, tx, id, ids)
		if err != nil {
			return err
		}
		page = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	if patch.DeviceIDs != nil {
		s.assignments.assigned(ctx, page)
	}

	log.Info().
		Str("landingPageId", page.ID).
		Str("name", page.Name).
		Int("slides", len(page.Slides)).
		Msg("Landing page updated")

	publish(ctx, s.publisher, &models.Event{
		Type:          models.EventTypeLandingPageUpdated,
		LandingPageID: page.ID,
		Description:   "Landing page updated",
		OccurredAt:    s.now(),
		Details:       models.Variables{"isDefault": page.IsDefault},
	})

	return page, nil
}

// Get returns a landing page by id
func (s *LandingPageService) Get(ctx context.Context, id string) (*models.LandingPage, error) {
	page, err := s.store.GetLandingPage(ctx, id)
	if err != nil {
		return nil, storeErr("get landing page", err)
	}
	return page, nil
}

// List returns active landing pages, newest first
func (s *LandingPageService) List(ctx context.Context) ([]*models.LandingPage, error) {
	pages, err := s.store.ListLandingPages(ctx, true)
	if err != nil {
		return nil, &StorageError{Op: "list landing pages", Err: err}
	}
	return pages, nil
}

// Preview returns the page deviceID would show, falling back to the default
// page when it has no assignment. The result is nil when no active page exists.
func (s *LandingPageService) Preview(ctx context.Context, deviceID string) (*models.LandingPage, error) {
	if _, err := s.store.GetDevice(ctx, deviceID); err != nil {
		return nil, storeErr("get device", err)
	}
	return s.assignments.Resolve(ctx, deviceID)
}

// Delete soft-deletes landing page id
func (s *LandingPageService) Delete(ctx context.Context, id string) error {
	page, err := s.store.GetLandingPage(ctx, id)
	if err != nil {
		return storeErr("get landing page", err)
	}

	page.IsActive = false
	if err := s.store.UpdateLandingPage(ctx, page); err != nil {
		return storeErr("update landing page", err)
	}

	log.Info().
		Str("landingPageId", page.ID).
		Str("name", page.Name).
		Msg("Landing page deleted")

	publish(ctx, s.publisher, &models.Event{
		Type:          models.EventTypeLandingPageDeleted,
		LandingPageID: page.ID,
		Description:   "Landing page deleted",
		OccurredAt:    s.now(),
	})

	return nil
}

// EnsureDefault seeds a default landing page when the store has never held
// one. It reports whether a page was created.
func (s *LandingPageService) EnsureDefault(ctx context.Context) (bool, error) {
	count, err := s.store.CountLandingPages(ctx)
	if err != nil {
		return false, &StorageError{Op: "count landing pages", Err: err}
	}
	if count > 0 {
		return false, nil
	}

	_, err = s.Create(ctx, LandingPageInput{
		Name:      seedPageName,
		IsDefault: true,
		Slides:    []SlideInput{{ImageURL: seedSlideImage, Title: seedSlideTitle}},
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
