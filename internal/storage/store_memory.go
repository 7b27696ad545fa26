package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/inmapper/kiosk-server/internal/models"
)

// MemoryStore implements Store in process memory. It applies the same
// uniqueness rules as the PostgreSQL schema. Each method is atomic on its own;
// BeginTx returns the store itself, so multi-step sequences are not isolated.
type MemoryStore struct {
	mu sync.RWMutex

	devices      map[string]*models.Device
	landingPages map[string]*models.LandingPage
	events       []*models.EventLog

	// insertion and write order break created_at and updated_at ties
	seq       int64
	pageSeq   map[string]int64
	pageWrite map[string]int64
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		devices:      make(map[string]*models.Device),
		landingPages: make(map[string]*models.LandingPage),
		pageSeq:      make(map[string]int64),
		pageWrite:    make(map[string]int64),
	}
}

func (s *MemoryStore) BeginTx(ctx context.Context) (Store, error) { return s, nil }
func (s *MemoryStore) Commit() error                               { return nil }
func (s *MemoryStore) Rollback() error                             { return nil }
func (s *MemoryStore) Ping(ctx context.Context) error              { return nil }
func (s *MemoryStore) Close() error                                { return nil }

// ========== Devices ==========

func (s *MemoryStore) checkDeviceUnique(device *models.Device) error {
	for _, d := range s.devices {
		if d.ID == device.ID {
			continue
		}
		if d.Fingerprint == device.Fingerprint {
			return fmt.Errorf("%w: devices_fingerprint_key", ErrDuplicateKey)
		}
		if device.DisplayID != "" && d.DisplayID == device.DisplayID {
			return fmt.Errorf("%w: devices_display_id_key", ErrDuplicateKey)
		}
	}
	return nil
}

func (s *MemoryStore) CreateDevice(ctx context.Context, device *models.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if device.ID == "" {
		device.ID = uuid.NewString()
	}
	if _, ok := s.devices[device.ID]; ok {
		return fmt.Errorf("%w: devices_pkey", ErrDuplicateKey)
	}
	if err := s.checkDeviceUnique(device); err != nil {
		return err
	}

	now := time.Now()
	device.CreatedAt = now
	device.UpdatedAt = now
	s.devices[device.ID] = device.Clone()
	return nil
}

func (s *MemoryStore) GetDevice(ctx context.Context, id string) (*models.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.devices[id]
	if !ok {
		return nil, ErrNotFound
	}
	return d.Clone(), nil
}

func (s *MemoryStore) GetDeviceByFingerprint(ctx context.Context, fingerprint string) (*models.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, d := range s.devices {
		if d.Fingerprint == fingerprint {
			return d.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) DisplayIDExists(ctx context.Context, displayID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, d := range s.devices {
		if d.DisplayID == displayID {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) UpdateDevice(ctx context.Context, device *models.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.devices[device.ID]
	if !ok {
		return ErrNotFound
	}
	if err := s.checkDeviceUnique(device); err != nil {
		return err
	}

	device.UpdatedAt = time.Now()
	stored := device.Clone()
	stored.Fingerprint = existing.Fingerprint
	stored.CreatedAt = existing.CreatedAt
	s.devices[device.ID] = stored
	return nil
}

func (s *MemoryStore) TouchDevice(ctx context.Context, id string, lastSeen time.Time, status models.DeviceStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.devices[id]
	if !ok {
		return ErrNotFound
	}
	d.LastSeen = lastSeen
	d.Status = status
	d.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) ListDevices(ctx context.Context, filters DeviceFilters) ([]*models.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var wanted map[string]bool
	if filters.IDs != nil {
		wanted = make(map[string]bool, len(filters.IDs))
		for _, id := range filters.IDs {
			wanted[id] = true
		}
	}

	var devices []*models.Device
	for _, d := range s.devices {
		if filters.ActiveOnly && !d.IsActive {
			continue
		}
		if wanted != nil && !wanted[d.ID] {
			continue
		}
		devices = append(devices, d.Clone())
	}

	sort.SliceStable(devices, func(i, j int) bool {
		return devices[i].LastSeen.After(devices[j].LastSeen)
	})
	return devices, nil
}

// ========== Landing pages ==========

// checkSingleDefault mirrors the partial unique index on is_default
func (s *MemoryStore) checkSingleDefault(page *models.LandingPage) error {
	if !page.IsDefault || !page.IsActive {
		return nil
	}
	for _, p := range s.landingPages {
		if p.ID != page.ID && p.IsDefault && p.IsActive {
			return fmt.Errorf("%w: idx_landing_pages_single_default", ErrDuplicateKey)
		}
	}
	return nil
}

func (s *MemoryStore) CreateLandingPage(ctx context.Context, page *models.LandingPage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if page.ID == "" {
		page.ID = uuid.NewString()
	}
	if _, ok := s.landingPages[page.ID]; ok {
		return fmt.Errorf("%w: landing_pages_pkey", ErrDuplicateKey)
	}
	if err := s.checkSingleDefault(page); err != nil {
		return err
	}
	if page.DeviceIDs == nil {
		page.DeviceIDs = []string{}
	}

	now := time.Now()
	page.CreatedAt = now
	s.seq++
	s.pageSeq[page.ID] = s.seq
	s.touchPage(page, now)
	s.landingPages[page.ID] = page.Clone()
	return nil
}

func (s *MemoryStore) GetLandingPage(ctx context.Context, id string) (*models.LandingPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.landingPages[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (s *MemoryStore) UpdateLandingPage(ctx context.Context, page *models.LandingPage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.landingPages[page.ID]
	if !ok {
		return ErrNotFound
	}
	if err := s.checkSingleDefault(page); err != nil {
		return err
	}

	s.touchPage(page, time.Now())
	stored := page.Clone()
	stored.CreatedAt = existing.CreatedAt
	stored.DeviceIDs = existing.DeviceIDs
	s.landingPages[page.ID] = stored
	return nil
}

// sortedPages returns clones ordered oldest first
func (s *MemoryStore) sortedPages(keep func(*models.LandingPage) bool) []*models.LandingPage {
	var pages []*models.LandingPage
	for _, p := range s.landingPages {
		if keep(p) {
			pages = append(pages, p.Clone())
		}
	}
	sort.Slice(pages, func(i, j int) bool {
		return s.pageSeq[pages[i].ID] < s.pageSeq[pages[j].ID]
	})
	return pages
}

// touchPage stamps a page write; callers hold the write lock
func (s *MemoryStore) touchPage(p *models.LandingPage, now time.Time) {
	s.seq++
	s.pageWrite[p.ID] = s.seq
	p.UpdatedAt = now
}

// latestPage returns the most recently written page matching keep
func (s *MemoryStore) latestPage(keep func(*models.LandingPage) bool) (*models.LandingPage, error) {
	var latest *models.LandingPage
	for _, p := range s.landingPages {
		if keep(p) && (latest == nil || s.pageWrite[p.ID] > s.pageWrite[latest.ID]) {
			latest = p
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return latest.Clone(), nil
}

func (s *MemoryStore) ListLandingPages(ctx context.Context, activeOnly bool) ([]*models.LandingPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pages := s.sortedPages(func(p *models.LandingPage) bool {
		return !activeOnly || p.IsActive
	})
	for i, j := 0, len(pages)-1; i < j; i, j = i+1, j-1 {
		pages[i], pages[j] = pages[j], pages[i]
	}
	return pages, nil
}

func (s *MemoryStore) CountLandingPages(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.landingPages)), nil
}

func (s *MemoryStore) FindLandingPageForDevice(ctx context.Context, deviceID string) (*models.LandingPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.latestPage(func(p *models.LandingPage) bool {
		return p.IsActive && p.HasDevice(deviceID)
	})
}

func (s *MemoryStore) GetDefaultLandingPage(ctx context.Context) (*models.LandingPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.latestPage(func(p *models.LandingPage) bool {
		return p.IsActive && p.IsDefault
	})
}

func (s *MemoryStore) GetOldestLandingPage(ctx context.Context) (*models.LandingPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pages := s.sortedPages(func(p *models.LandingPage) bool {
		return p.IsActive
	})
	if len(pages) == 0 {
		return nil, ErrNotFound
	}
	return pages[0], nil
}

func (s *MemoryStore) ClearDefaultLandingPages(ctx context.Context, exceptID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, p := range s.landingPages {
		if id != exceptID && p.IsDefault && p.IsActive {
			p.IsDefault = false
			s.touchPage(p, now)
		}
	}
	return nil
}

func (s *MemoryStore) PullDevicesFromLandingPages(ctx context.Context, exceptID string, deviceIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pull := make(map[string]bool, len(deviceIDs))
	for _, id := range deviceIDs {
		pull[id] = true
	}

	now := time.Now()
	for id, p := range s.landingPages {
		if id == exceptID {
			continue
		}
		kept := make([]string, 0, len(p.DeviceIDs))
		for _, d := range p.DeviceIDs {
			if !pull[d] {
				kept = append(kept, d)
			}
		}
		if len(kept) != len(p.DeviceIDs) {
			p.DeviceIDs = kept
			s.touchPage(p, now)
		}
	}
	return nil
}

func (s *MemoryStore) SetLandingPageDevices(ctx context.Context, id string, deviceIDs []string) (*models.LandingPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.landingPages[id]
	if !ok {
		return nil, ErrNotFound
	}
	p.DeviceIDs = append([]string{}, deviceIDs...)
	s.touchPage(p, time.Now())
	return p.Clone(), nil
}

// ========== Events ==========

func (s *MemoryStore) CreateEventLog(ctx context.Context, event *models.EventLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	e := *event
	e.Details = event.Details.Clone()
	s.events = append(s.events, &e)
	return nil
}

func (s *MemoryStore) ListEventLogs(ctx context.Context, filters EventLogFilters, limit, offset int) ([]*models.EventLog, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.EventLog
	// newest first
	for i := len(s.events) - 1; i >= 0; i-- {
		e := s.events[i]
		if filters.DeviceID != nil && (e.DeviceID == nil || *e.DeviceID != *filters.DeviceID) {
			continue
		}
		if filters.LandingPageID != nil && (e.LandingPageID == nil || *e.LandingPageID != *filters.LandingPageID) {
			continue
		}
		if filters.Type != nil && e.Type != *filters.Type {
			continue
		}
		if filters.StartTime != nil && e.CreatedAt.Before(*filters.StartTime) {
			continue
		}
		if filters.EndTime != nil && e.CreatedAt.After(*filters.EndTime) {
			continue
		}
		c := *e
		matched = append(matched, &c)
	}

	total := int64(len(matched))
	if offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, total, nil
}
