package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/inmapper/kiosk-server/internal/api"
	"github.com/inmapper/kiosk-server/internal/config"
	"github.com/inmapper/kiosk-server/internal/events"
	"github.com/inmapper/kiosk-server/internal/integration"
	"github.com/inmapper/kiosk-server/internal/kiosk"
	"github.com/inmapper/kiosk-server/internal/server"
	"github.com/inmapper/kiosk-server/internal/storage"
)

func main() {
	// Command line flags
	var configFile string
	flag.StringVar(&configFile, "config", "config/kiosk-server.yml", "Configuration file path (empty for defaults and environment only)")
	flag.Parse()

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Load configuration
	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	cfg.LogSummary()

	store, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer store.Close()

	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// WaitGroup for services
	var wg sync.WaitGroup

	var publisher events.Publisher = events.NopPublisher{}

	// Optional: NATS event publishing and recording
	if cfg.NATS.URL != "" {
		log.Info().Str("url", cfg.NATS.URL).Msg("Connecting to NATS...")

		nc, err := nats.Connect(cfg.NATS.URL,
			nats.Name(cfg.NATS.ClientName),
			nats.UserInfo(cfg.NATS.Username, cfg.NATS.Password),
			nats.ReconnectWait(cfg.NATS.ReconnectInterval),
			nats.MaxReconnects(cfg.NATS.MaxReconnects),
			nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
				log.Warn().Err(err).Msg("Disconnected from NATS")
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				log.Info().Msg("Reconnected to NATS")
			}),
			nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
				event := log.Error().Err(err)
				if sub != nil {
					event = event.Str("subject", sub.Subject)
				}
				event.Msg("NATS error")
			}),
		)

		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect to NATS, continuing without events")
		} else {
			defer nc.Close()
			log.Info().Msg("Connected to NATS")

			publisher = events.NewNATSPublisher(nc, cfg.NATS.SubjectPrefix)

			if cfg.NATS.RecordEvents {
				subscriber := server.NewNATSSubscriber(nc, store, cfg.NATS.SubjectPrefix)

				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := subscriber.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
						log.Error().Err(err).Msg("NATS subscriber stopped")
					}
				}()
			}

			if cfg.Integrations.Enabled() {
				forwarder := integration.NewForwarderService(nc, cfg.NATS.SubjectPrefix, cfg.Integrations)

				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := forwarder.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
						log.Error().Err(err).Msg("Integration forwarder stopped")
					}
				}()
			}
		}
	} else {
		log.Info().Msg("NATS not configured, running without events")
		if cfg.Integrations.Enabled() {
			log.Warn().Msg("Integrations are configured but need NATS, forwarding disabled")
		}
	}

	services := kiosk.New(store, kiosk.Options{
		Publisher:                 publisher,
		DefaultTransitionDuration: int(cfg.Kiosk.DefaultTransitionDuration / time.Millisecond),
	})

	if cfg.Kiosk.ShouldSeedDefaultPage() {
		created, err := services.LandingPages.EnsureDefault(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to seed default landing page")
		}
		if created {
			log.Info().Msg("Created default landing page")
		}
	}

	apiServer := api.NewRESTServer(cfg, store, services)

	// Start API server
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := apiServer.ListenAndServe(cfg.API.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("REST API server failed")
		}
	}()

	// Wait for signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received signal, shutting down")

	// Cancel context
	cancel()

	// Shutdown API server
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown API server gracefully")
	}

	// Wait for all services
	wg.Wait()

	log.Info().Msg("Kiosk server stopped")
}

// openStore connects the configured store and applies the schema
func openStore(cfg *config.Config) (storage.Store, error) {
	if cfg.Database.Driver == config.DriverMemory {
		log.Warn().Msg("Using in-memory store, data is lost on restart")
		return storage.NewMemoryStore(), nil
	}

	store, err := storage.NewPostgresStore(cfg.Database.DSN, storage.PoolOptions{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}

	log.Info().Msg("Connected to database")
	return store, nil
}
