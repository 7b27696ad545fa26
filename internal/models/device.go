package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// DeviceStatus is the heartbeat-derived liveness of a kiosk.
type DeviceStatus string

const (
	DeviceStatusOnline  DeviceStatus = "online"
	DeviceStatusIdle    DeviceStatus = "idle"
	DeviceStatusOffline DeviceStatus = "offline"
)

// DeviceInfo is the client-reported metadata snapshot. Well-known keys are
// userAgent, screenResolution, language, platform and timezone; any other key
// is kept as sent.
type DeviceInfo = Variables

// MergeDeviceInfo merges incoming over existing key by key. Keys missing from
// incoming keep their existing value.
func MergeDeviceInfo(existing, incoming DeviceInfo) DeviceInfo {
	merged := existing.Clone()
	for k, v := range incoming {
		merged[k] = v
	}
	return merged
}

// Location describes where a kiosk is physically installed
type Location struct {
	Floor       string `json:"floor"`
	Zone        string `json:"zone"`
	Description string `json:"description"`
}

// Value implements driver.Valuer
func (l Location) Value() (driver.Value, error) {
	return json.Marshal(l)
}

// Scan implements sql.Scanner
func (l *Location) Scan(value interface{}) error {
	*l = Location{}
	return scanJSON(value, l)
}

// Device represents a registered kiosk
type Device struct {
	BaseModel

	// Identifiers
	Fingerprint string `json:"fingerprint" db:"fingerprint"`
	DisplayID   string `json:"displayId,omitempty" db:"display_id"`

	// Metadata
	Name       string     `json:"name" db:"name"`
	DeviceInfo DeviceInfo `json:"deviceInfo" db:"device_info"`
	IPAddress  string     `json:"ipAddress" db:"ip_address"`
	Location   Location   `json:"location" db:"location"`
	Tags       []string   `json:"tags" db:"tags"`

	// Status
	Status   DeviceStatus `json:"status" db:"status"`
	LastSeen time.Time    `json:"lastSeen" db:"last_seen"`
	IsActive bool         `json:"isActive" db:"is_active"`
}

// Clone returns a deep copy safe to hand across store boundaries.
func (d *Device) Clone() *Device {
	c := *d
	c.DeviceInfo = d.DeviceInfo.Clone()
	if d.Tags != nil {
		c.Tags = append([]string(nil), d.Tags...)
	}
	return &c
}
