// Package liveness derives a device's online/offline verdict from how
// recently the backend heard from it. The verdict is independent of the
// network state the device reports about itself.
package liveness

import (
	"time"

	"fleetwatch/internal/tracking/models"
)

// Verdict is the computed liveness of a device.
type Verdict string

const (
	Online  Verdict = "online"
	Offline Verdict = "offline"
)

// Window is the recency bound; a device last seen exactly Window ago is offline.
const Window = 5 * time.Minute

// Classify returns Online iff now-lastSeen < Window. A nil or zero lastSeen
// is Offline.
func Classify(lastSeen *time.Time, now time.Time) Verdict {
	if lastSeen == nil || lastSeen.IsZero() {
		return Offline
	}
	if now.Sub(*lastSeen) < Window {
		return Online
	}
	return Offline
}

// ClassifyString parses raw leniently before classifying. Unreadable input
// is Offline.
func ClassifyString(raw string, now time.Time) Verdict {
	t, ok := models.ParseTimestamp(raw)
	if !ok {
		return Offline
	}
	return Classify(&t, now)
}

// ForDevice classifies d.LastSeen.
func ForDevice(d models.Device, now time.Time) Verdict {
	return Classify(d.LastSeen, now)
}

// IsOnline is a convenience for list rendering.
func (v Verdict) IsOnline() bool {
	return v == Online
}
