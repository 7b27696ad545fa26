package server

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inmapper/kiosk-server/internal/models"
	"github.com/inmapper/kiosk-server/internal/storage"
)

func TestRecordEvent(t *testing.T) {
	store := storage.NewMemoryStore()
	sub := NewNATSSubscriber(nil, store, "")
	ctx := context.Background()

	occurred := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	data, err := json.Marshal(&models.Event{
		Type:        models.EventTypeDeviceDeleted,
		DeviceID:    "dev-1",
		Description: "Device deleted",
		OccurredAt:  occurred,
	})
	require.NoError(t, err)

	require.NoError(t, sub.record(ctx, "kiosk.device.deleted", data))

	logs, total, err := store.ListEventLogs(ctx, storage.EventLogFilters{}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, logs, 1)

	entry := logs[0]
	assert.Equal(t, models.EventTypeDeviceDeleted, entry.Type)
	assert.Equal(t, models.EventLevelWarning, entry.Level)
	require.NotNil(t, entry.DeviceID)
	assert.Equal(t, "dev-1", *entry.DeviceID)
	assert.Nil(t, entry.LandingPageID)
	assert.Equal(t, occurred, entry.CreatedAt)
}

func TestRecordEventTypeFromSubject(t *testing.T) {
	store := storage.NewMemoryStore()
	sub := NewNATSSubscriber(nil, store, "fleet")
	ctx := context.Background()

	require.NoError(t, sub.record(ctx, "fleet.landing_page.assigned", []byte(`{"landingPageId":"page-1"}`)))

	logs, _, err := store.ListEventLogs(ctx, storage.EventLogFilters{}, 10, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.EventTypeLandingPageAssigned, logs[0].Type)
	assert.Equal(t, models.EventLevelInfo, logs[0].Level)
	assert.False(t, logs[0].CreatedAt.IsZero())
}

func TestRecordEventRejectsGarbage(t *testing.T) {
	sub := NewNATSSubscriber(nil, storage.NewMemoryStore(), "")

	assert.Error(t, sub.record(context.Background(), "kiosk.device.updated", []byte("not json")))
}
