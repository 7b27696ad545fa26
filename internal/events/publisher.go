// Package events publishes domain events for every write the kiosk core makes.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/inmapper/kiosk-server/internal/models"
)

// DefaultSubjectPrefix is prepended to every event type
const DefaultSubjectPrefix = "kiosk"

// Publisher delivers domain events
type Publisher interface {
	Publish(ctx context.Context, event *models.Event) error
}

// Conn is the subset of *nats.Conn used for publishing
type Conn interface {
	Publish(subject string, data []byte) error
}

var _ Conn = (*nats.Conn)(nil)

// NATSPublisher publishes events as JSON on <prefix>.<event type>
type NATSPublisher struct {
	conn   Conn
	prefix string
}

// NewNATSPublisher creates a publisher on conn
func NewNATSPublisher(conn Conn, prefix string) *NATSPublisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSPublisher{conn: conn, prefix: prefix}
}

// Publish implements Publisher
func (p *NATSPublisher) Publish(ctx context.Context, event *models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.conn.Publish(Subject(p.prefix, event.Type), data); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// Subject returns the subject an event type is published on
func Subject(prefix string, t models.EventType) string {
	return prefix + "." + string(t)
}

// NopPublisher drops every event
type NopPublisher struct{}

// Publish implements Publisher
func (NopPublisher) Publish(context.Context, *models.Event) error { return nil }
