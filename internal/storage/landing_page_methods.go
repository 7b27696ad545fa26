package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/inmapper/kiosk-server/internal/models"
)

// ========== Landing Page Methods ==========

const landingPageColumns = `id, created_at, updated_at, name, description, device_ids, slides,
               transition_duration, transition_effect, styling, tags, is_default, is_active`

func scanLandingPage(row rowScanner) (*models.LandingPage, error) {
	page := &models.LandingPage{}

	err := row.Scan(
		&page.ID, &page.CreatedAt, &page.UpdatedAt, &page.Name, &page.Description,
		pq.Array(&page.DeviceIDs), &page.Slides, &page.TransitionDuration,
		&page.TransitionEffect, &page.Styling, pq.Array(&page.Tags),
		&page.IsDefault, &page.IsActive,
	)
	if err != nil {
		return nil, err
	}
	return page, nil
}

// queryLandingPage returns the first page matched by query, or ErrNotFound
func (s *PostgresStore) queryLandingPage(ctx context.Context, query string, args ...interface{}) (*models.LandingPage, error) {
	page, err := scanLandingPage(s.getDB().QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, mapError(err)
	}
	return page, nil
}

// CreateLandingPage creates a new landing page
func (s *PostgresStore) CreateLandingPage(ctx context.Context, page *models.LandingPage) error {
	if page.ID == "" {
		page.ID = uuid.NewString()
	}

	now := time.Now()
	page.CreatedAt = now
	page.UpdatedAt = now

	if page.DeviceIDs == nil {
		page.DeviceIDs = []string{}
	}

	query := `
        INSERT INTO landing_pages (
            id, created_at, updated_at, name, description, device_ids, slides,
            transition_duration, transition_effect, styling, tags, is_default, is_active
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := s.getDB().ExecContext(ctx, query,
		page.ID, page.CreatedAt, page.UpdatedAt, page.Name, page.Description,
		pq.Array(page.DeviceIDs), page.Slides, page.TransitionDuration,
		page.TransitionEffect, page.Styling, pq.Array(page.Tags),
		page.IsDefault, page.IsActive,
	)

	return mapError(err)
}

// GetLandingPage gets a landing page by id, active or not
func (s *PostgresStore) GetLandingPage(ctx context.Context, id string) (*models.LandingPage, error) {
	return s.queryLandingPage(ctx,
		`SELECT `+landingPageColumns+` FROM landing_pages WHERE id = $1`, id)
}

// UpdateLandingPage updates a landing page's content fields. device_ids is
// owned by SetLandingPageDevices and PullDevicesFromLandingPages and is not
// written here.
func (s *PostgresStore) UpdateLandingPage(ctx context.Context, page *models.LandingPage) error {
	page.UpdatedAt = time.Now()

	query := `
        UPDATE landing_pages SET
            updated_at = $2, name = $3, description = $4, slides = $5,
            transition_duration = $6, transition_effect = $7, styling = $8,
            tags = $9, is_default = $10, is_active = $11
        WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query,
		page.ID, page.UpdatedAt, page.Name, page.Description, page.Slides,
		page.TransitionDuration, page.TransitionEffect, page.Styling,
		pq.Array(page.Tags), page.IsDefault, page.IsActive,
	)
	if err != nil {
		return mapError(err)
	}

	return expectOneRow(result)
}

// ListLandingPages lists landing pages, newest first
func (s *PostgresStore) ListLandingPages(ctx context.Context, activeOnly bool) ([]*models.LandingPage, error) {
	query := `SELECT ` + landingPageColumns + ` FROM landing_pages`
	if activeOnly {
		query += " WHERE is_active = TRUE"
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.getDB().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []*models.LandingPage
	for rows.Next() {
		page, err := scanLandingPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}

	return pages, rows.Err()
}

// CountLandingPages counts every landing page, including soft-deleted ones
func (s *PostgresStore) CountLandingPages(ctx context.Context) (int64, error) {
	var count int64
	err := s.getDB().QueryRowContext(ctx, "SELECT COUNT(*) FROM landing_pages").Scan(&count)
	return count, err
}

// FindLandingPageForDevice returns the active page whose device_ids holds deviceID
func (s *PostgresStore) FindLandingPageForDevice(ctx context.Context, deviceID string) (*models.LandingPage, error) {
	return s.queryLandingPage(ctx,
		`SELECT `+landingPageColumns+` FROM landing_pages
        WHERE is_active = TRUE AND $1 = ANY(device_ids)
        ORDER BY updated_at DESC LIMIT 1`, deviceID)
}

// GetDefaultLandingPage returns the active page flagged as default
func (s *PostgresStore) GetDefaultLandingPage(ctx context.Context) (*models.LandingPage, error) {
	return s.queryLandingPage(ctx,
		`SELECT `+landingPageColumns+` FROM landing_pages
        WHERE is_active = TRUE AND is_default = TRUE
        ORDER BY updated_at DESC LIMIT 1`)
}

// GetOldestLandingPage returns the first-created active page
func (s *PostgresStore) GetOldestLandingPage(ctx context.Context) (*models.LandingPage, error) {
	return s.queryLandingPage(ctx,
		`SELECT `+landingPageColumns+` FROM landing_pages
        WHERE is_active = TRUE
        ORDER BY created_at ASC LIMIT 1`)
}

// ClearDefaultLandingPages unsets is_default on every active page except
// exceptID. Soft-deleted pages keep their flag.
func (s *PostgresStore) ClearDefaultLandingPages(ctx context.Context, exceptID string) error {
	_, err := s.getDB().ExecContext(ctx,
		`UPDATE landing_pages SET is_default = FALSE, updated_at = $2
        WHERE id <> $1 AND is_default = TRUE AND is_active = TRUE`,
		exceptID, time.Now(),
	)
	return mapError(err)
}

// PullDevicesFromLandingPages removes deviceIDs from every page except
// exceptID, preserving the order of the remaining ids. An empty exceptID
// pulls from every page.
func (s *PostgresStore) PullDevicesFromLandingPages(ctx context.Context, exceptID string, deviceIDs []string) error {
	if len(deviceIDs) == 0 {
		return nil
	}

	query := `
        UPDATE landing_pages SET
            device_ids = ARRAY(
                SELECT d FROM unnest(device_ids) WITH ORDINALITY AS t(d, n)
                WHERE d <> ALL($2::text[])
                ORDER BY n
            ),
            updated_at = $3
        WHERE id <> $1 AND device_ids && $2::text[]`

	_, err := s.getDB().ExecContext(ctx, query, exceptID, pq.Array(deviceIDs), time.Now())
	return mapError(err)
}

// SetLandingPageDevices replaces a page's device_ids and returns the updated page
func (s *PostgresStore) SetLandingPageDevices(ctx context.Context, id string, deviceIDs []string) (*models.LandingPage, error) {
	if deviceIDs == nil {
		deviceIDs = []string{}
	}

	return s.queryLandingPage(ctx,
		`UPDATE landing_pages SET device_ids = $2, updated_at = $3
        WHERE id = $1
        RETURNING `+landingPageColumns,
		id, pq.Array(deviceIDs), time.Now())
}
