package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inmapper/kiosk-server/internal/models"
)

func TestMemoryStore_DeviceUniqueness(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.CreateDevice(ctx, &models.Device{Fingerprint: "fp-1", DisplayID: "123456"}))
	require.NoError(t, store.CreateDevice(ctx, &models.Device{Fingerprint: "fp-2"}))
	require.NoError(t, store.CreateDevice(ctx, &models.Device{Fingerprint: "fp-3"}), "many devices may lack a display id")

	err := store.CreateDevice(ctx, &models.Device{Fingerprint: "fp-1"})
	assert.ErrorIs(t, err, ErrDuplicateKey)

	err = store.CreateDevice(ctx, &models.Device{Fingerprint: "fp-4", DisplayID: "123456"})
	assert.ErrorIs(t, err, ErrDuplicateKey)

	exists, err := store.DisplayIDExists(ctx, "123456")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	device := &models.Device{Fingerprint: "fp-1", DeviceInfo: models.DeviceInfo{"a": 1}, Tags: []string{"x"}}
	require.NoError(t, store.CreateDevice(ctx, device))

	got, err := store.GetDevice(ctx, device.ID)
	require.NoError(t, err)
	got.DeviceInfo["a"] = 2
	got.Tags[0] = "y"

	again, err := store.GetDevice(ctx, device.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, again.DeviceInfo["a"])
	assert.Equal(t, []string{"x"}, again.Tags)
}

func TestMemoryStore_UpdateDeviceKeepsFingerprint(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	device := &models.Device{Fingerprint: "fp-1"}
	require.NoError(t, store.CreateDevice(ctx, device))

	device.Fingerprint = "changed"
	device.Name = "Lobby"
	require.NoError(t, store.UpdateDevice(ctx, device))

	got, err := store.GetDeviceByFingerprint(ctx, "fp-1")
	require.NoError(t, err)
	assert.Equal(t, "Lobby", got.Name)

	assert.ErrorIs(t, store.UpdateDevice(ctx, &models.Device{BaseModel: models.BaseModel{ID: "missing"}}), ErrNotFound)
	assert.ErrorIs(t, store.TouchDevice(ctx, "missing", time.Now(), models.DeviceStatusOnline), ErrNotFound)
}

func TestMemoryStore_SingleActiveDefault(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	a := &models.LandingPage{Name: "a", IsDefault: true, IsActive: true}
	require.NoError(t, store.CreateLandingPage(ctx, a))

	b := &models.LandingPage{Name: "b", IsDefault: true, IsActive: true}
	assert.ErrorIs(t, store.CreateLandingPage(ctx, b), ErrDuplicateKey)

	require.NoError(t, store.ClearDefaultLandingPages(ctx, ""))
	require.NoError(t, store.CreateLandingPage(ctx, b))

	def, err := store.GetDefaultLandingPage(ctx)
	require.NoError(t, err)
	assert.Equal(t, b.ID, def.ID)
}

func TestMemoryStore_ClearDefaultKeepsDeletedDefault(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	deleted := &models.LandingPage{Name: "old", IsDefault: true, IsActive: true}
	require.NoError(t, store.CreateLandingPage(ctx, deleted))
	deleted.IsActive = false
	require.NoError(t, store.UpdateLandingPage(ctx, deleted))

	current := &models.LandingPage{Name: "current", IsDefault: true, IsActive: true}
	require.NoError(t, store.CreateLandingPage(ctx, current))

	require.NoError(t, store.ClearDefaultLandingPages(ctx, ""))

	got, err := store.GetLandingPage(ctx, deleted.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDefault)

	got, err = store.GetLandingPage(ctx, current.ID)
	require.NoError(t, err)
	assert.False(t, got.IsDefault)
}

func TestMemoryStore_FindLandingPageForDevicePrefersLatestWrite(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	a := &models.LandingPage{Name: "a", IsActive: true}
	b := &models.LandingPage{Name: "b", IsActive: true}
	require.NoError(t, store.CreateLandingPage(ctx, a))
	require.NoError(t, store.CreateLandingPage(ctx, b))

	// Bypass the pull so both pages claim d1
	_, err := store.SetLandingPageDevices(ctx, a.ID, []string{"d1"})
	require.NoError(t, err)
	_, err = store.SetLandingPageDevices(ctx, b.ID, []string{"d1"})
	require.NoError(t, err)

	found, err := store.FindLandingPageForDevice(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, b.ID, found.ID)

	a.Name = "a2"
	require.NoError(t, store.UpdateLandingPage(ctx, a))

	found, err = store.FindLandingPageForDevice(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, a.ID, found.ID)
}

func TestMemoryStore_PullAndSetDevices(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	a := &models.LandingPage{Name: "a", IsActive: true}
	b := &models.LandingPage{Name: "b", IsActive: true}
	require.NoError(t, store.CreateLandingPage(ctx, a))
	require.NoError(t, store.CreateLandingPage(ctx, b))

	_, err := store.SetLandingPageDevices(ctx, a.ID, []string{"d1", "d2", "d3"})
	require.NoError(t, err)

	require.NoError(t, store.PullDevicesFromLandingPages(ctx, b.ID, []string{"d2"}))
	updated, err := store.SetLandingPageDevices(ctx, b.ID, []string{"d2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"d2"}, updated.DeviceIDs)

	got, err := store.GetLandingPage(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"d1", "d3"}, got.DeviceIDs)

	found, err := store.FindLandingPageForDevice(ctx, "d2")
	require.NoError(t, err)
	assert.Equal(t, b.ID, found.ID)

	_, err = store.SetLandingPageDevices(ctx, "missing", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_UpdateLandingPageKeepsDevices(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	page := &models.LandingPage{Name: "a", IsActive: true}
	require.NoError(t, store.CreateLandingPage(ctx, page))
	_, err := store.SetLandingPageDevices(ctx, page.ID, []string{"d1"})
	require.NoError(t, err)

	page.Name = "renamed"
	page.DeviceIDs = nil
	require.NoError(t, store.UpdateLandingPage(ctx, page))

	got, err := store.GetLandingPage(ctx, page.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
	assert.Equal(t, []string{"d1"}, got.DeviceIDs)
}

func TestMemoryStore_LandingPageOrdering(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first := &models.LandingPage{Name: "first", IsActive: true}
	second := &models.LandingPage{Name: "second", IsActive: true}
	deleted := &models.LandingPage{Name: "deleted", IsActive: false}
	for _, p := range []*models.LandingPage{first, second, deleted} {
		require.NoError(t, store.CreateLandingPage(ctx, p))
	}

	active, err := store.ListLandingPages(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, second.ID, active[0].ID)
	assert.Equal(t, first.ID, active[1].ID)

	all, err := store.ListLandingPages(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	count, err := store.CountLandingPages(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	oldest, err := store.GetOldestLandingPage(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, oldest.ID)

	_, err = store.GetDefaultLandingPage(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_EventLogs(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	dev := "dev-1"
	page := "page-1"
	require.NoError(t, store.CreateEventLog(ctx, &models.EventLog{Type: models.EventTypeDeviceRegistered, DeviceID: &dev}))
	require.NoError(t, store.CreateEventLog(ctx, &models.EventLog{Type: models.EventTypeLandingPageCreated, LandingPageID: &page}))
	require.NoError(t, store.CreateEventLog(ctx, &models.EventLog{Type: models.EventTypeDeviceUpdated, DeviceID: &dev}))

	logs, total, err := store.ListEventLogs(ctx, EventLogFilters{DeviceID: &dev}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, logs, 2)
	assert.Equal(t, models.EventTypeDeviceUpdated, logs[0].Type)

	logs, total, err = store.ListEventLogs(ctx, EventLogFilters{}, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, logs, 1)
	assert.Equal(t, models.EventTypeLandingPageCreated, logs[0].Type)

	logs, _, err = store.ListEventLogs(ctx, EventLogFilters{}, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, logs)
}
