package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/inmapper/kiosk-server/internal/models"
)

// ========== Device Methods ==========

const deviceColumns = `id, created_at, updated_at, fingerprint, display_id, name,
               device_info, ip_address, location, tags, status, last_seen, is_active`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDevice(row rowScanner) (*models.Device, error) {
	device := &models.Device{}
	var displayID sql.NullString

	err := row.Scan(
		&device.ID, &device.CreatedAt, &device.UpdatedAt, &device.Fingerprint,
		&displayID, &device.Name, &device.DeviceInfo, &device.IPAddress,
		&device.Location, pq.Array(&device.Tags), &device.Status, &device.LastSeen,
		&device.IsActive,
	)
	if err != nil {
		return nil, err
	}

	device.DisplayID = displayID.String
	return device, nil
}

// CreateDevice creates a new device
func (s *PostgresStore) CreateDevice(ctx context.Context, device *models.Device) error {
	if device.ID == "" {
		device.ID = uuid.NewString()
	}

	now := time.Now()
	device.CreatedAt = now
	device.UpdatedAt = now

	query := `
        INSERT INTO devices (
            id, created_at, updated_at, fingerprint, display_id, name,
            device_info, ip_address, location, tags, status, last_seen, is_active
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := s.getDB().ExecContext(ctx, query,
		device.ID, device.CreatedAt, device.UpdatedAt, device.Fingerprint,
		nullString(device.DisplayID), device.Name, device.DeviceInfo, device.IPAddress,
		device.Location, pq.Array(device.Tags), device.Status, device.LastSeen,
		device.IsActive,
	)

	return mapError(err)
}

// GetDevice gets a device by id, active or not
func (s *PostgresStore) GetDevice(ctx context.Context, id string) (*models.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = $1`

	device, err := scanDevice(s.getDB().QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError(err)
	}
	return device, nil
}

// GetDeviceByFingerprint gets a device by fingerprint, active or not
func (s *PostgresStore) GetDeviceByFingerprint(ctx context.Context, fingerprint string) (*models.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE fingerprint = $1`

	device, err := scanDevice(s.getDB().QueryRowContext(ctx, query, fingerprint))
	if err != nil {
		return nil, mapError(err)
	}
	return device, nil
}

// DisplayIDExists reports whether any device already holds displayID
func (s *PostgresStore) DisplayIDExists(ctx context.Context, displayID string) (bool, error) {
	var exists bool
	err := s.getDB().QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM devices WHERE display_id = $1)", displayID,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// UpdateDevice updates a device. The fingerprint is immutable and is not written.
func (s *PostgresStore) UpdateDevice(ctx context.Context, device *models.Device) error {
	device.UpdatedAt = time.Now()

	query := `
        UPDATE devices SET
            updated_at = $2, display_id = $3, name = $4, device_info = $5,
            ip_address = $6, location = $7, tags = $8, status = $9,
            last_seen = $10, is_active = $11
        WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query,
		device.ID, device.UpdatedAt, nullString(device.DisplayID), device.Name,
		device.DeviceInfo, device.IPAddress, device.Location, pq.Array(device.Tags),
		device.Status, device.LastSeen, device.IsActive,
	)
	if err != nil {
		return mapError(err)
	}

	return expectOneRow(result)
}

// TouchDevice records a heartbeat without rewriting the rest of the document
func (s *PostgresStore) TouchDevice(ctx context.Context, id string, lastSeen time.Time, status models.DeviceStatus) error {
	result, err := s.getDB().ExecContext(ctx,
		"UPDATE devices SET last_seen = $2, status = $3, updated_at = $4 WHERE id = $1",
		id, lastSeen, status, time.Now(),
	)
	if err != nil {
		return mapError(err)
	}

	return expectOneRow(result)
}

// ListDevices lists devices, most recently seen first
func (s *PostgresStore) ListDevices(ctx context.Context, filters DeviceFilters) ([]*models.Device, error) {
	var where []string
	var args []interface{}

	if filters.ActiveOnly {
		where = append(where, "is_active = TRUE")
	}
	if filters.IDs != nil {
		args = append(args, pq.Array(filters.IDs))
		where = append(where, fmt.Sprintf("id = ANY($%d)", len(args)))
	}

	query := `SELECT ` + deviceColumns + ` FROM devices`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY last_seen DESC"

	rows, err := s.getDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []*models.Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, device)
	}

	return devices, rows.Err()
}
