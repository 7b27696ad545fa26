package kiosk

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/inmapper/kiosk-server/internal/models"
	"github.com/inmapper/kiosk-server/internal/storage"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// counterIntn yields 1, 2, 3, ... so every draw is a fresh display id
func counterIntn() func(int) int {
	var i int
	return func(n int) int {
		i++
		return i % n
	}
}

// sequenceIntn replays draws and then repeats the last one
func sequenceIntn(draws ...int) func(int) int {
	var i int
	return func(n int) int {
		d := draws[i]
		if i < len(draws)-1 {
			i++
		}
		return d
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*models.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, e *models.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Types() []models.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	var types []models.EventType
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}

// MockPublisher is a mock implementation of events.Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, e *models.Event) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

type testEnv struct {
	svc   *Services
	store *storage.MemoryStore
	clock *fakeClock
	pub   *recordingPublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, counterIntn())
}

func newTestEnvWith(t *testing.T, intn func(int) int) *testEnv {
	t.Helper()
	env := &testEnv{
		store: storage.NewMemoryStore(),
		clock: &fakeClock{t: epoch},
		pub:   &recordingPublisher{},
	}
	env.svc = New(env.store, Options{
		Now:       env.clock.Now,
		Intn:      intn,
		Publisher: env.pub,
	})
	return env
}

func (env *testEnv) register(t *testing.T, fingerprint string) *models.Device {
	t.Helper()
	d, err := env.svc.Identity.Resolve(context.Background(), Registration{Fingerprint: fingerprint})
	require.NoError(t, err)
	return d
}

func (env *testEnv) createPage(t *testing.T, name string, isDefault bool) *models.LandingPage {
	t.Helper()
	p, err := env.svc.LandingPages.Create(context.Background(), LandingPageInput{
		Name:      name,
		IsDefault: isDefault,
		Slides:    []SlideInput{{ImageURL: "https://cdn.example.com/" + name + ".jpg"}},
	})
	require.NoError(t, err)
	return p
}
