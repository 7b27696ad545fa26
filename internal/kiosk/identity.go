package kiosk

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/inmapper/kiosk-server/internal/events"
	"github.com/inmapper/kiosk-server/internal/models"
	"github.com/inmapper/kiosk-server/internal/storage"
)

// Display id generation bounds
const (
	displayIDMin         = 100000
	displayIDSpan        = 900000
	displayIDMaxAttempts = 100
)

// Registration is a kiosk announcing itself
type Registration struct {
	Fingerprint string
	DeviceInfo  models.DeviceInfo
	IPAddress   string
}

// IdentityResolver maps fingerprints to durable device records
type IdentityResolver struct {
	store     storage.Store
	publisher events.Publisher
	now       func() time.Time
	intn      func(n int) int
}

// NewIdentityResolver creates an identity resolver
func NewIdentityResolver(store storage.Store, publisher events.Publisher, now func() time.Time, intn func(n int) int) *IdentityResolver {
	return &IdentityResolver{
		store:     store,
		publisher: publisher,
		now:       now,
		intn:      intn,
	}
}

// Resolve returns the device for reg.Fingerprint, creating it on first sight.
// A known fingerprint always resolves to its existing record, soft-deleted or
// not: the record is reactivated, its metadata merged and its heartbeat
// updated. Every call writes.
//
// A first registration that loses a race on the fingerprint resolves to the
// winner's record. Losing a race on the display id returns a StorageError
// wrapping storage.ErrDuplicateKey; the caller may retry.
func (r *IdentityResolver) Resolve(ctx context.Context, reg Registration) (*models.Device, error) {
	if strings.TrimSpace(reg.Fingerprint) == "" {
		return nil, invalid("fingerprint", "fingerprint is required")
	}

	device, err := r.store.GetDeviceByFingerprint(ctx, reg.Fingerprint)
	if errors.Is(err, storage.ErrNotFound) {
		return r.create(ctx, reg)
	}
	if err != nil {
		return nil, &StorageError{Op: "find device by fingerprint", Err: err}
	}

	return r.refresh(ctx, device, reg)
}

func (r *IdentityResolver) create(ctx context.Context, reg Registration) (*models.Device, error) {
	displayID, err := r.generateDisplayID(ctx)
	if err != nil {
		return nil, err
	}

	now := r.now()
	device := &models.Device{
		BaseModel:   models.BaseModel{ID: uuid.NewString()},
		Fingerprint: reg.Fingerprint,
		DisplayID:   displayID,
		Name:        displayID,
		DeviceInfo:  reg.DeviceInfo.Clone(),
		IPAddress:   reg.IPAddress,
		Tags:        []string{},
		LastSeen:    now,
		IsActive:    true,
	}
	stampStatus(device, now)

	if err := r.store.CreateDevice(ctx, device); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			// A concurrent registration may have inserted the fingerprint first
			existing, findErr := r.store.GetDeviceByFingerprint(ctx, reg.Fingerprint)
			if findErr == nil {
				log.Debug().
					Str("deviceId", existing.ID).
					Msg("Fingerprint registered concurrently")
				return r.refresh(ctx, existing, reg)
			}
		}
		return nil, &StorageError{Op: "create device", Err: err}
	}

	log.Info().
		Str("deviceId", device.ID).
		Str("displayId", device.DisplayID).
		Str("fingerprint", device.Fingerprint).
		Msg("New device registered")

	publish(ctx, r.publisher, &models.Event{
		Type:        models.EventTypeDeviceRegistered,
		DeviceID:    device.ID,
		Description: "Device registered",
		OccurredAt:  now,
		Details: models.Variables{
			"displayId": device.DisplayID,
			"created":   true,
		},
	})

	return device, nil
}

func (r *IdentityResolver) refresh(ctx context.Context, device *models.Device, reg Registration) (*models.Device, error) {
	if device.DisplayID == "" {
		displayID, err := r.generateDisplayID(ctx)
		if err != nil {
			return nil, err
		}
		device.DisplayID = displayID
		if device.Name == "" {
			device.Name = displayID
		}
		log.Info().
			Str("deviceId", device.ID).
			Str("displayId", displayID).
			Msg("Display id backfilled")
	}

	reactivated := !device.IsActive
	now := r.now()

	device.DeviceInfo = models.MergeDeviceInfo(device.DeviceInfo, reg.DeviceInfo)
	device.LastSeen = now
	device.IsActive = true
	if reg.IPAddress != "" {
		device.IPAddress = reg.IPAddress
	}
	stampStatus(device, now)

	if err := r.store.UpdateDevice(ctx, device); err != nil {
		return nil, storeErr("update device", err)
	}

	log.Info().
		Str("deviceId", device.ID).
		Str("displayId", device.DisplayID).
		Bool("reactivated", reactivated).
		Msg("Existing device updated")

	publish(ctx, r.publisher, &models.Event{
		Type:        models.EventTypeDeviceRegistered,
		DeviceID:    device.ID,
		Description: "Device re-registered",
		OccurredAt:  now,
		Details: models.Variables{
			"displayId":   device.DisplayID,
			"created":     false,
			"reactivated": reactivated,
		},
	})

	return device, nil
}

// generateDisplayID draws random six digit codes until one is unused. After
// displayIDMaxAttempts collisions it returns the last six digits of the
// current millisecond timestamp, which is not guaranteed unique.
//
// The check and the later insert are not atomic; the store's unique index on
// display_id catches the rare concurrent duplicate.
func (r *IdentityResolver) generateDisplayID(ctx context.Context) (string, error) {
	for attempt := 0; attempt < displayIDMaxAttempts; attempt++ {
		candidate := strconv.Itoa(displayIDMin + r.intn(displayIDSpan))

		exists, err := r.store.DisplayIDExists(ctx, candidate)
		if err != nil {
			return "", &StorageError{Op: "check display id", Err: err}
		}
		if !exists {
			return candidate, nil
		}
	}

	fallback := fmt.Sprintf("%06d", r.now().UnixMilli()%1000000)
	log.Warn().
		Err(ErrExhaustedRetries).
		Int("attempts", displayIDMaxAttempts).
		Str("displayId", fallback).
		Msg("Using timestamp display id")
	return fallback, nil
}
