package kiosk

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inmapper/kiosk-server/internal/models"
)

func TestGetConfigUnassigned(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	d := env.register(t, "fp-1")
	env.createPage(t, "default", true)

	env.clock.Advance(2 * time.Hour)
	cfg, err := env.svc.Config.GetConfig(ctx, d.ID)
	require.NoError(t, err)

	assert.Nil(t, cfg.LandingPage, "no fallback to the default page")
	assert.False(t, cfg.IsAssigned)
	assert.Equal(t, "No landing page assigned to this device", cfg.Message)
	assert.Equal(t, d.ID, cfg.Device.ID)
	assert.Equal(t, d.DisplayID, cfg.Device.DisplayID)
	assert.Equal(t, models.DeviceStatusOnline, cfg.Device.Status)

	stored, err := env.store.GetDevice(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, env.clock.Now(), stored.LastSeen)
	assert.Equal(t, models.DeviceStatusOnline, stored.Status)
}

func TestGetConfigAssigned(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	d := env.register(t, "fp-1")

	page, err := env.svc.LandingPages.Create(ctx, LandingPageInput{
		Name:             "Spring sale",
		TransitionEffect: "fade",
		Slides: []SlideInput{
			{ImageURL: "one.jpg", Title: "One"},
			{ImageURL: ""},
			{ImageURL: "two.jpg", Title: "Two"},
		},
	})
	require.NoError(t, err)
	_, err = env.svc.Assignments.Assign(ctx, page.ID, []string{d.ID})
	require.NoError(t, err)

	cfg, err := env.svc.Config.GetConfig(ctx, d.ID)
	require.NoError(t, err)

	require.NotNil(t, cfg.LandingPage)
	assert.True(t, cfg.IsAssigned)
	assert.Empty(t, cfg.Message)
	assert.Equal(t, page.ID, cfg.LandingPage.ID)
	assert.Equal(t, "Spring sale", cfg.LandingPage.Name)
	assert.Equal(t, models.DefaultTransitionDuration, cfg.LandingPage.TransitionDuration)
	assert.Equal(t, models.TransitionFade, cfg.LandingPage.TransitionEffect)
	assert.Equal(t, []string{d.ID}, cfg.LandingPage.DeviceIDs)
	require.Len(t, cfg.LandingPage.Slides, 2)
	assert.Equal(t, "two.jpg", cfg.LandingPage.Slides[1].ImageURL)
	assert.Equal(t, 1, cfg.LandingPage.Slides[1].Order)
}

func TestGetConfigUnknownDevice(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Config.GetConfig(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetConfigDeletedDevice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	d := env.register(t, "fp-1")
	require.NoError(t, env.svc.Devices.Delete(ctx, d.ID))

	cfg, err := env.svc.Config.GetConfig(ctx, d.ID)
	require.NoError(t, err)
	assert.False(t, cfg.IsAssigned)

	stored, err := env.store.GetDevice(ctx, d.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive, "polling does not reactivate")
}
