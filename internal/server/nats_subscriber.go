package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/inmapper/kiosk-server/internal/events"
	"github.com/inmapper/kiosk-server/internal/models"
	"github.com/inmapper/kiosk-server/internal/storage"
)

// NATSSubscriber records every published kiosk event in the event log
type NATSSubscriber struct {
	nc     *nats.Conn
	store  storage.Store
	prefix string
	subs   []*nats.Subscription
}

// NewNATSSubscriber creates NATS subscriber
func NewNATSSubscriber(nc *nats.Conn, store storage.Store, prefix string) *NATSSubscriber {
	if prefix == "" {
		prefix = events.DefaultSubjectPrefix
	}
	return &NATSSubscriber{
		nc:     nc,
		store:  store,
		prefix: prefix,
		subs:   make([]*nats.Subscription, 0),
	}
}

// Start subscribes to <prefix>.> and blocks until ctx is done
func (s *NATSSubscriber) Start(ctx context.Context) error {
	sub, err := s.nc.Subscribe(s.prefix+".>", s.handleEvent)
	if err != nil {
		return fmt.Errorf("subscribe kiosk events: %w", err)
	}
	s.subs = append(s.subs, sub)

	log.Info().
		Str("subject", sub.Subject).
		Msg("NATS subscriber started")

	<-ctx.Done()

	// Unsubscribe
	for _, sub := range s.subs {
		if err := sub.Unsubscribe(); err != nil {
			log.Warn().Err(err).Str("subject", sub.Subject).Msg("Failed to unsubscribe")
		}
	}

	return ctx.Err()
}

// handleEvent handles one published event
func (s *NATSSubscriber) handleEvent(msg *nats.Msg) {
	log.Debug().
		Str("subject", msg.Subject).
		Int("size", len(msg.Data)).
		Msg("Received kiosk event")

	if err := s.record(context.Background(), msg.Subject, msg.Data); err != nil {
		log.Error().Err(err).Str("subject", msg.Subject).Msg("Failed to record event")
	}
}

// record decodes an event payload and stores it as an event log entry
func (s *NATSSubscriber) record(ctx context.Context, subject string, data []byte) error {
	var event models.Event
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("unmarshal event: %w", err)
	}

	if event.Type == "" {
		event.Type = models.EventType(strings.TrimPrefix(subject, s.prefix+"."))
	}

	entry := &models.EventLog{
		CreatedAt:   event.OccurredAt,
		Type:        event.Type,
		Level:       levelOf(event.Type),
		Description: event.Description,
		Details:     event.Details,
	}
	if event.DeviceID != "" {
		entry.DeviceID = &event.DeviceID
	}
	if event.LandingPageID != "" {
		entry.LandingPageID = &event.LandingPageID
	}

	if err := s.store.CreateEventLog(ctx, entry); err != nil {
		return fmt.Errorf("create event log: %w", err)
	}
	return nil
}

func levelOf(t models.EventType) models.EventLevel {
	switch t {
	case models.EventTypeDeviceDeleted, models.EventTypeLandingPageDeleted:
		return models.EventLevelWarning
	default:
		return models.EventLevelInfo
	}
}
