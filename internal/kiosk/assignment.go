package kiosk

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/inmapper/kiosk-server/internal/events"
	"github.com/inmapper/kiosk-server/internal/models"
	"github.com/inmapper/kiosk-server/internal/storage"
)

// AssignmentResolver keeps every device on at most one landing page, keeps at
// most one active page flagged default, and answers which page a device shows.
type AssignmentResolver struct {
	store     storage.Store
	publisher events.Publisher
	now       func() time.Time
}

// NewAssignmentResolver creates an assignment resolver
func NewAssignmentResolver(store storage.Store, publisher events.Publisher, now func() time.Time) *AssignmentResolver {
	return &AssignmentResolver{
		store:     store,
		publisher: publisher,
		now:       now,
	}
}

// Assign replaces the device set of landing page pageID with deviceIDs.
//
// The ids are first pulled from every other page, then set on the target.
// Both writes share a transaction when the store supports one. Without it a
// failure between the steps leaves the devices on no page, which falls back
// to the default; they can never end up on two pages because the target
// write comes last.
func (a *AssignmentResolver) Assign(ctx context.Context, pageID string, deviceIDs []string) (*models.LandingPage, error) {
	if deviceIDs == nil {
		return nil, invalid("deviceIds", "deviceIds must be an array")
	}
	ids, err := normalizeDeviceIDs(deviceIDs)
	if err != nil {
		return nil, err
	}

	page, err := a.store.GetLandingPage(ctx, pageID)
	if err != nil {
		return nil, storeErr("get landing page", err)
	}
	if !page.IsActive {
		return nil, storeErr("get landing page", storage.ErrNotFound)
	}

	if err := a.checkAssignable(ctx, ids); err != nil {
		return nil, err
	}

	var updated *models.LandingPage
	err = withTx(ctx, a.store, func(tx storage.Store) error {
		updated, err = a.setDevices(ctx, tx, pageID, ids)
		return err
	})
	if err != nil {
		return nil, err
	}

	a.assigned(ctx, updated)
	return updated, nil
}

// setDevices pulls ids from every other page and sets them on pageID within tx.
// ids must already be normalized and assignable.
func (a *AssignmentResolver) setDevices(ctx context.Context, tx storage.Store, pageID string, ids []string) (*models.LandingPage, error) {
	if err := tx.PullDevicesFromLandingPages(ctx, pageID, ids); err != nil {
		return nil, &StorageError{Op: "pull devices from other landing pages", Err: err}
	}
	updated, err := tx.SetLandingPageDevices(ctx, pageID, ids)
	if err != nil {
		return nil, storeErr("set landing page devices", err)
	}
	return updated, nil
}

func (a *AssignmentResolver) assigned(ctx context.Context, page *models.LandingPage) {
	log.Info().
		Str("landingPageId", page.ID).
		Int("devices", len(page.DeviceIDs)).
		Msg("Devices assigned")

	publish(ctx, a.publisher, &models.Event{
		Type:          models.EventTypeLandingPageAssigned,
		LandingPageID: page.ID,
		Description:   "Devices assigned to landing page",
		OccurredAt:    a.now(),
		Details: models.Variables{
			"deviceIds": page.DeviceIDs,
		},
	})
}

// normalizeDeviceIDs rejects blank ids and collapses duplicates, keeping
// first occurrences in order.
func normalizeDeviceIDs(deviceIDs []string) ([]string, error) {
	seen := make(map[string]bool, len(deviceIDs))
	ids := make([]string, 0, len(deviceIDs))
	for i, id := range deviceIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, invalid("deviceIds", "entry %d is empty", i)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}

// checkAssignable rejects ids of unknown or soft-deleted devices
func (a *AssignmentResolver) checkAssignable(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	devices, err := a.store.ListDevices(ctx, storage.DeviceFilters{ActiveOnly: true, IDs: ids})
	if err != nil {
		return &StorageError{Op: "list devices", Err: err}
	}

	active := make(map[string]bool, len(devices))
	for _, d := range devices {
		active[d.ID] = true
	}
	for _, id := range ids {
		if !active[id] {
			return invalid("deviceIds", "device %s does not exist or is deleted", id)
		}
	}
	return nil
}

// Lookup returns the active page deviceID is assigned to, or nil when it has
// none. It never falls back to the default page.
func (a *AssignmentResolver) Lookup(ctx context.Context, deviceID string) (*models.LandingPage, error) {
	page, err := a.store.FindLandingPageForDevice(ctx, deviceID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "find landing page for device", Err: err}
	}
	return page, nil
}

// Resolve returns the page deviceID should show: its assigned page, else the
// default page, else the oldest active page. It returns nil, nil when no
// active page exists; that is a displayable state, not an error.
func (a *AssignmentResolver) Resolve(ctx context.Context, deviceID string) (*models.LandingPage, error) {
	page, err := a.Lookup(ctx, deviceID)
	if err != nil || page != nil {
		return page, err
	}
	return a.Default(ctx)
}

// Default returns the flagged default page, else the oldest active page, else nil
func (a *AssignmentResolver) Default(ctx context.Context) (*models.LandingPage, error) {
	page, err := a.store.GetDefaultLandingPage(ctx)
	if err == nil {
		return page, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, &StorageError{Op: "get default landing page", Err: err}
	}

	page, err = a.store.GetOldestLandingPage(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "get oldest landing page", Err: err}
	}
	return page, nil
}

// saveWithDefault persists page through save and, when the page is flagged
// default, first demotes every other page in the same transaction. The
// demotion runs before the save so the store never sees two defaults.
func (a *AssignmentResolver) saveWithDefault(ctx context.Context, page *models.LandingPage, save func(tx storage.Store) error) error {
	return withTx(ctx, a.store, func(tx storage.Store) error {
		if page.IsDefault && page.IsActive {
			if err := tx.ClearDefaultLandingPages(ctx, page.ID); err != nil {
				return &StorageError{Op: "clear default landing pages", Err: err}
			}
		}
		return save(tx)
	})
}
