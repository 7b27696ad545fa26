// Package kiosk implements device identity and content assignment for the
// kiosk fleet: fingerprint registration, heartbeat status, landing page
// assignment with default fallback, and the config read path kiosks poll.
//
// The store is the only shared state. Nothing here caches or serialises
// requests in process; invariants that span documents are kept by explicit
// write sequences, run inside a store transaction where the store has one.
package kiosk

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/inmapper/kiosk-server/internal/events"
	"github.com/inmapper/kiosk-server/internal/models"
	"github.com/inmapper/kiosk-server/internal/storage"
)

// Options configures the services built by New
type Options struct {
	// Now defaults to time.Now
	Now func() time.Time
	// Intn draws display id candidates; defaults to math/rand.Intn
	Intn func(n int) int
	// Publisher defaults to events.NopPublisher
	Publisher events.Publisher
	// DefaultTransitionDuration in milliseconds for pages created without one
	DefaultTransitionDuration int
}

func (o *Options) setDefaults() {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Intn == nil {
		o.Intn = rand.Intn
	}
	if o.Publisher == nil {
		o.Publisher = events.NopPublisher{}
	}
	if o.DefaultTransitionDuration == 0 {
		o.DefaultTransitionDuration = models.DefaultTransitionDuration
	}
}

// Services bundles the core components over one store
type Services struct {
	Identity     *IdentityResolver
	Assignments  *AssignmentResolver
	Config       *ConfigService
	Devices      *DeviceService
	LandingPages *LandingPageService
	Stats        *StatsService
}

// New wires every core component to store
func New(store storage.Store, opts Options) *Services {
	opts.setDefaults()

	assignments := NewAssignmentResolver(store, opts.Publisher, opts.Now)
	return &Services{
		Identity:     NewIdentityResolver(store, opts.Publisher, opts.Now, opts.Intn),
		Assignments:  assignments,
		Config:       NewConfigService(store, assignments, opts.Now),
		Devices:      NewDeviceService(store, opts.Publisher, opts.Now),
		LandingPages: NewLandingPageService(store, assignments, opts.Publisher, opts.Now, opts.DefaultTransitionDuration),
		Stats:        NewStatsService(store, opts.Now),
	}
}

// publish delivers e and only logs failures; a lost event never fails a write
func publish(ctx context.Context, pub events.Publisher, e *models.Event) {
	if err := pub.Publish(ctx, e); err != nil {
		log.Warn().
			Err(err).
			Str("type", string(e.Type)).
			Msg("Failed to publish event")
	}
}

// withTx runs fn inside a store transaction, committing on success
func withTx(ctx context.Context, store storage.Store, fn func(tx storage.Store) error) error {
	tx, err := store.BeginTx(ctx)
	if err != nil {
		return &StorageError{Op: "begin transaction", Err: err}
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error().Err(rbErr).Msg("Failed to roll back transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return &StorageError{Op: "commit transaction", Err: err}
	}
	return nil
}
