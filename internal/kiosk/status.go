package kiosk

import (
	"time"

	"github.com/inmapper/kiosk-server/internal/models"
)

// Heartbeat thresholds
const (
	OnlineWindow = 5 * time.Minute
	IdleWindow   = time.Hour
)

// ComputeStatus derives a device's liveness from its last heartbeat. It is
// used both to stamp the stored status before every device write and to
// recompute it on reads, so the two always agree.
func ComputeStatus(lastSeen, now time.Time) models.DeviceStatus {
	elapsed := now.Sub(lastSeen)
	switch {
	case elapsed < OnlineWindow:
		return models.DeviceStatusOnline
	case elapsed < IdleWindow:
		return models.DeviceStatusIdle
	default:
		return models.DeviceStatusOffline
	}
}

// stampStatus writes the computed status into d ahead of a persist
func stampStatus(d *models.Device, now time.Time) {
	d.Status = ComputeStatus(d.LastSeen, now)
}
