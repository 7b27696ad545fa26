package storage

import (
	"context"
	"fmt"
)

// schema contains the database schema DDL.
const schema = `
-- Devices
CREATE TABLE IF NOT EXISTS devices (
    id TEXT PRIMARY KEY,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    fingerprint TEXT NOT NULL UNIQUE,
    display_id TEXT UNIQUE,
    name TEXT NOT NULL DEFAULT '',
    device_info JSONB NOT NULL DEFAULT '{}',
    ip_address TEXT NOT NULL DEFAULT '',
    location JSONB NOT NULL DEFAULT '{}',
    tags TEXT[] NOT NULL DEFAULT '{}',
    status TEXT NOT NULL DEFAULT 'offline',
    last_seen TIMESTAMPTZ NOT NULL DEFAULT now(),
    is_active BOOLEAN NOT NULL DEFAULT TRUE
);
CREATE INDEX IF NOT EXISTS idx_devices_last_seen ON devices(last_seen DESC);
CREATE INDEX IF NOT EXISTS idx_devices_status ON devices(status);
CREATE INDEX IF NOT EXISTS idx_devices_created_at ON devices(created_at DESC);

-- Landing pages
CREATE TABLE IF NOT EXISTS landing_pages (
    id TEXT PRIMARY KEY,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    device_ids TEXT[] NOT NULL DEFAULT '{}',
    slides JSONB NOT NULL DEFAULT '[]',
    transition_duration INTEGER NOT NULL DEFAULT 8000
        CHECK (transition_duration BETWEEN 1000 AND 60000),
    transition_effect TEXT NOT NULL DEFAULT 'slide',
    styling JSONB NOT NULL DEFAULT '{}',
    tags TEXT[] NOT NULL DEFAULT '{}',
    is_default BOOLEAN NOT NULL DEFAULT FALSE,
    is_active BOOLEAN NOT NULL DEFAULT TRUE
);
CREATE INDEX IF NOT EXISTS idx_landing_pages_device_ids ON landing_pages USING GIN (device_ids);
CREATE INDEX IF NOT EXISTS idx_landing_pages_active ON landing_pages(is_active);
CREATE INDEX IF NOT EXISTS idx_landing_pages_created_at ON landing_pages(created_at DESC);
CREATE UNIQUE INDEX IF NOT EXISTS idx_landing_pages_single_default
    ON landing_pages(is_default) WHERE is_default AND is_active;

-- Event log
CREATE TABLE IF NOT EXISTS event_logs (
    id TEXT PRIMARY KEY,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    device_id TEXT,
    landing_page_id TEXT,
    type TEXT NOT NULL,
    level TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    details JSONB NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_event_logs_created_at ON event_logs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_event_logs_device_id ON event_logs(device_id);
`

// Migrate creates the tables and indexes if they do not exist
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
