package storage

import (
	"context"
	"errors"
	"time"

	"github.com/inmapper/kiosk-server/internal/models"
)

// Common errors
var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrInvalidData  = errors.New("invalid data")
)

// Store defines the storage interface
type Store interface {
	// Transaction support. Stores without transactions return themselves
	// and treat Commit/Rollback as no-ops.
	BeginTx(ctx context.Context) (Store, error)
	Commit() error
	Rollback() error

	// Device methods
	CreateDevice(ctx context.Context, device *models.Device) error
	GetDevice(ctx context.Context, id string) (*models.Device, error)
	GetDeviceByFingerprint(ctx context.Context, fingerprint string) (*models.Device, error)
	DisplayIDExists(ctx context.Context, displayID string) (bool, error)
	UpdateDevice(ctx context.Context, device *models.Device) error
	TouchDevice(ctx context.Context, id string, lastSeen time.Time, status models.DeviceStatus) error
	ListDevices(ctx context.Context, filters DeviceFilters) ([]*models.Device, error)

	// Landing page methods
	CreateLandingPage(ctx context.Context, page *models.LandingPage) error
	GetLandingPage(ctx context.Context, id string) (*models.LandingPage, error)
	UpdateLandingPage(ctx context.Context, page *models.LandingPage) error
	ListLandingPages(ctx context.Context, activeOnly bool) ([]*models.LandingPage, error)
	CountLandingPages(ctx context.Context) (int64, error)
	FindLandingPageForDevice(ctx context.Context, deviceID string) (*models.LandingPage, error)
	GetDefaultLandingPage(ctx context.Context) (*models.LandingPage, error)
	GetOldestLandingPage(ctx context.Context) (*models.LandingPage, error)
	ClearDefaultLandingPages(ctx context.Context, exceptID string) error
	PullDevicesFromLandingPages(ctx context.Context, exceptID string, deviceIDs []string) error
	SetLandingPageDevices(ctx context.Context, id string, deviceIDs []string) (*models.LandingPage, error)

	// Event log methods
	CreateEventLog(ctx context.Context, event *models.EventLog) error
	ListEventLogs(ctx context.Context, filters EventLogFilters, limit, offset int) ([]*models.EventLog, int64, error)

	Ping(ctx context.Context) error

	// Close the store
	Close() error
}

// DeviceFilters narrows ListDevices. Results are ordered by last_seen desc.
type DeviceFilters struct {
	ActiveOnly bool
	IDs        []string
}

// EventLogFilters represents filters for event logs
type EventLogFilters struct {
	DeviceID      *string
	LandingPageID *string
	Type          *models.EventType
	StartTime     *time.Time
	EndTime       *time.Time
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
