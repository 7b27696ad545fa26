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

// DevicePatch carries the operator-editable device fields. Nil fields are
// left unchanged.
type DevicePatch struct {
	Name     *string
	Location *models.Location
	Tags     *[]string
}

// DeviceService handles operator reads and writes on devices
type DeviceService struct {
	store     storage.Store
	publisher events.Publisher
	now       func() time.Time
}

// NewDeviceService creates a device service
func NewDeviceService(store storage.Store, publisher events.Publisher, now func() time.Time) *DeviceService {
	return &DeviceService{
		store:     store,
		publisher: publisher,
		now:       now,
	}
}

// List returns active devices, most recently seen first, with status
// recomputed for the current time.
func (s *DeviceService) List(ctx context.Context) ([]*models.Device, error) {
	devices, err := s.store.ListDevices(ctx, storage.DeviceFilters{ActiveOnly: true})
	if err != nil {
		return nil, &StorageError{Op: "list devices", Err: err}
	}

	now := s.now()
	for _, d := range devices {
		stampStatus(d, now)
	}
	return devices, nil
}

// Get returns a device by id, soft-deleted or not, with status recomputed
func (s *DeviceService) Get(ctx context.Context, id string) (*models.Device, error) {
	device, err := s.store.GetDevice(ctx, id)
	if err != nil {
		return nil, storeErr("get device", err)
	}
	stampStatus(device, s.now())
	return device, nil
}

// Update applies patch to device id
func (s *DeviceService) Update(ctx context.Context, id string, patch DevicePatch) (*models.Device, error) {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, invalid("name", "name must not be empty")
	}

	device, err := s.store.GetDevice(ctx, id)
	if err != nil {
		return nil, storeErr("get device", err)
	}

	if patch.Name != nil {
		device.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Location != nil {
		device.Location = *patch.Location
	}
	if patch.Tags != nil {
		device.Tags = append([]string{}, (*patch.Tags)...)
	}

	now := s.now()
	stampStatus(device, now)
	if err := s.store.UpdateDevice(ctx, device); err != nil {
		return nil, storeErr("update device", err)
	}

	publish(ctx, s.publisher, &models.Event{
		Type:        models.EventTypeDeviceUpdated,
		DeviceID:    device.ID,
		Description: "Device updated",
		OccurredAt:  now,
	})

	return device, nil
}

// Delete soft-deletes device id and unassigns it from every landing page.
// The fingerprint and id stay reserved; registering the fingerprint again
// reactivates the record. Deleting an already deleted device succeeds.
func (s *DeviceService) Delete(ctx context.Context, id string) error {
	device, err := s.store.GetDevice(ctx, id)
	if err != nil {
		return storeErr("get device", err)
	}

	now := s.now()
	device.IsActive = false
	stampStatus(device, now)

	err = withTx(ctx, s.store, func(tx storage.Store) error {
		if err := tx.PullDevicesFromLandingPages(ctx, "", []string{device.ID}); err != nil {
			return &StorageError{Op: "pull device from landing pages", Err: err}
		}
		if err := tx.UpdateDevice(ctx, device); err != nil {
			return storeErr("update device", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().
		Str("deviceId", device.ID).
		Str("displayId", device.DisplayID).
		Msg("Device deleted")

	publish(ctx, s.publisher, &models.Event{
		Type:        models.EventTypeDeviceDeleted,
		DeviceID:    device.ID,
		Description: "Device deleted",
		OccurredAt:  now,
	})

	return nil
}
