package kiosk

import (
	"context"
	"time"

	"github.com/inmapper/kiosk-server/internal/storage"
)

// RecentWindow bounds the recentDevices count
const RecentWindow = 24 * time.Hour

// Stats summarises the fleet
type Stats struct {
	TotalDevices      int `json:"totalDevices"`
	ActiveDevices     int `json:"activeDevices"`
	RecentDevices     int `json:"recentDevices"`
	TotalLandingPages int `json:"totalLandingPages"`
	TotalSlides       int `json:"totalSlides"`
}

// StatsService computes fleet statistics
type StatsService struct {
	store storage.Store
	now   func() time.Time
}

// NewStatsService creates a stats service
func NewStatsService(store storage.Store, now func() time.Time) *StatsService {
	return &StatsService{store: store, now: now}
}

// Stats counts active devices and pages. ActiveDevices are those seen within
// OnlineWindow; slides are counted only when active on an active page.
func (s *StatsService) Stats(ctx context.Context) (*Stats, error) {
	devices, err := s.store.ListDevices(ctx, storage.DeviceFilters{ActiveOnly: true})
	if err != nil {
		return nil, &StorageError{Op: "list devices", Err: err}
	}
	pages, err := s.store.ListLandingPages(ctx, true)
	if err != nil {
		return nil, &StorageError{Op: "list landing pages", Err: err}
	}

	now := s.now()
	st := &Stats{
		TotalDevices:      len(devices),
		TotalLandingPages: len(pages),
	}
	for _, d := range devices {
		elapsed := now.Sub(d.LastSeen)
		if elapsed < OnlineWindow {
			st.ActiveDevices++
		}
		if elapsed < RecentWindow {
			st.RecentDevices++
		}
	}
	for _, p := range pages {
		st.TotalSlides += p.SlideCount()
	}
	return st, nil
}
