package kiosk

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/inmapper/kiosk-server/internal/models"
	"github.com/inmapper/kiosk-server/internal/storage"
)

// DeviceSummary identifies the polling device in a config response
type DeviceSummary struct {
	ID        string              `json:"id"`
	DisplayID string              `json:"displayId"`
	Name      string              `json:"name"`
	Status    models.DeviceStatus `json:"status"`
}

// PageContent is the part of a landing page a kiosk renders
type PageContent struct {
	ID                 string                  `json:"id"`
	Name               string                  `json:"name"`
	Slides             models.Slides           `json:"slides"`
	TransitionDuration int                     `json:"transitionDuration"`
	TransitionEffect   models.TransitionEffect `json:"transitionEffect"`
	Styling            models.Styling          `json:"styling"`
	DeviceIDs          []string                `json:"deviceIds"`
}

// DeviceConfig is what a kiosk receives on every poll
type DeviceConfig struct {
	Device      DeviceSummary `json:"device"`
	LandingPage *PageContent  `json:"landingPage"`
	IsAssigned  bool          `json:"isAssigned"`
	Message     string        `json:"message,omitempty"`
}

// ConfigService is the read path kiosks poll
type ConfigService struct {
	store       storage.Store
	assignments *AssignmentResolver
	now         func() time.Time
}

// NewConfigService creates a config service
func NewConfigService(store storage.Store, assignments *AssignmentResolver, now func() time.Time) *ConfigService {
	return &ConfigService{
		store:       store,
		assignments: assignments,
		now:         now,
	}
}

// GetConfig records a heartbeat for deviceID and returns its assigned page.
// A device without an assignment gets a nil page and IsAssigned false rather
// than the default page.
func (c *ConfigService) GetConfig(ctx context.Context, deviceID string) (*DeviceConfig, error) {
	device, err := c.store.GetDevice(ctx, deviceID)
	if err != nil {
		return nil, storeErr("get device", err)
	}

	now := c.now()
	device.LastSeen = now
	stampStatus(device, now)
	if err := c.store.TouchDevice(ctx, device.ID, device.LastSeen, device.Status); err != nil {
		return nil, storeErr("touch device", err)
	}

	page, err := c.assignments.Lookup(ctx, device.ID)
	if err != nil {
		return nil, err
	}

	cfg := &DeviceConfig{
		Device: DeviceSummary{
			ID:        device.ID,
			DisplayID: device.DisplayID,
			Name:      device.Name,
			Status:    device.Status,
		},
	}

	if page == nil {
		log.Debug().
			Str("deviceId", device.ID).
			Str("displayId", device.DisplayID).
			Msg("No landing page assigned to device")
		cfg.Message = "No landing page assigned to this device"
		return cfg, nil
	}

	log.Debug().
		Str("deviceId", device.ID).
		Str("landingPageId", page.ID).
		Int("slides", len(page.Slides)).
		Msg("Serving device config")

	cfg.LandingPage = contentOf(page)
	cfg.IsAssigned = true
	return cfg, nil
}

func contentOf(page *models.LandingPage) *PageContent {
	slides := page.Slides
	if slides == nil {
		slides = models.Slides{}
	}
	deviceIDs := page.DeviceIDs
	if deviceIDs == nil {
		deviceIDs = []string{}
	}
	return &PageContent{
		ID:                 page.ID,
		Name:               page.Name,
		Slides:             slides,
		TransitionDuration: page.TransitionDuration,
		TransitionEffect:   page.TransitionEffect,
		Styling:            page.Styling,
		DeviceIDs:          deviceIDs,
	}
}
