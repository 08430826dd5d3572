package liveness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"fleetwatch/internal/tracking/models"
)

func TestClassify(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		ts := now.Add(-d)
		return &ts
	}

	t.Run("nil last seen is offline", func(t *testing.T) {
		assert.Equal(t, Offline, Classify(nil, now))
	})

	t.Run("zero last seen is offline", func(t *testing.T) {
		assert.Equal(t, Offline, Classify(&time.Time{}, now))
	})

	t.Run("exactly five minutes is offline", func(t *testing.T) {
		assert.Equal(t, Offline, Classify(at(5*time.Minute), now))
	})

	t.Run("four minutes fifty nine seconds is online", func(t *testing.T) {
		assert.Equal(t, Online, Classify(at(4*time.Minute+59*time.Second), now))
	})

	t.Run("long silence is offline", func(t *testing.T) {
		assert.Equal(t, Offline, Classify(at(3*time.Hour), now))
	})

	t.Run("clock skew into the future counts as recent", func(t *testing.T) {
		assert.Equal(t, Online, Classify(at(-30*time.Second), now))
	})
}

func TestClassifyString(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, Online, ClassifyString("2025-03-01T11:58:00Z", now))
	assert.Equal(t, Online, ClassifyString("2025-03-01T11:58:00", now))
	assert.Equal(t, Offline, ClassifyString("2025-03-01T11:55:00Z", now))
	assert.Equal(t, Offline, ClassifyString("not a time", now))
	assert.Equal(t, Offline, ClassifyString("", now))
}

func TestForDeviceIgnoresSelfReportedNetwork(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	stale := now.Add(-time.Hour)
	d := models.Device{ID: "dev-1", Network: models.NetworkOnline, LastSeen: &stale}

	assert.Equal(t, Offline, ForDevice(d, now))
	assert.False(t, ForDevice(d, now).IsOnline())
}
