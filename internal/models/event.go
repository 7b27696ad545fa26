package models

import (
	"time"
)

// EventLog represents an event log entry
type EventLog struct {
	ID        string    `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	DeviceID      *string `json:"deviceId,omitempty" db:"device_id"`
	LandingPageID *string `json:"landingPageId,omitempty" db:"landing_page_id"`

	Type        EventType  `json:"type" db:"type"`
	Level       EventLevel `json:"level" db:"level"`
	Description string     `json:"description" db:"description"`

	Details Variables `json:"details,omitempty" db:"details"`
}

// EventType represents event types. The value doubles as the NATS subject
// suffix the event is published on.
type EventType string

const (
	// Device events
	EventTypeDeviceRegistered EventType = "device.registered"
	EventTypeDeviceUpdated    EventType = "device.updated"
	EventTypeDeviceDeleted    EventType = "device.deleted"

	// Landing page events
	EventTypeLandingPageCreated  EventType = "landing_page.created"
	EventTypeLandingPageUpdated  EventType = "landing_page.updated"
	EventTypeLandingPageDeleted  EventType = "landing_page.deleted"
	EventTypeLandingPageAssigned EventType = "landing_page.assigned"
)

// EventLevel represents event severity levels
type EventLevel string

const (
	EventLevelDebug   EventLevel = "DEBUG"
	EventLevelInfo    EventLevel = "INFO"
	EventLevelWarning EventLevel = "WARNING"
	EventLevelError   EventLevel = "ERROR"
)

// Event is the payload published for every domain write
type Event struct {
	Type          EventType `json:"type"`
	DeviceID      string    `json:"deviceId,omitempty"`
	LandingPageID string    `json:"landingPageId,omitempty"`
	Description   string    `json:"description"`
	OccurredAt    time.Time `json:"occurredAt"`
	Details       Variables `json:"details,omitempty"`
}
