// Package history reduces a dense location series to the key events worth
// showing: the first and last samples plus every point where the
// self-reported network state or the battery bucket moved relative to the
// last point shown.
package history

import (
	"sort"

	"fleetwatch/internal/tracking/models"
)

// BucketWidth is the battery band width in percentage points.
const BucketWidth = 20

// Bucket returns floor(battery / BucketWidth).
func Bucket(battery int) int {
	b := battery / BucketWidth
	if battery < 0 && battery%BucketWidth != 0 {
		b--
	}
	return b
}

// Compress returns the key events of series in input order. Input is
// expected ascending by timestamp; unsorted input is put in order with
// Ordered first. The input slice is never modified.
func Compress(series []models.LocationSample) []models.KeyEvent {
	if len(series) == 0 {
		return []models.KeyEvent{}
	}
	series = Ordered(series)

	var (
		events     []models.KeyEvent
		lastStatus models.NetworkState
		lastBucket int
		emitted    bool
	)
	last := len(series) - 1
	for i, sample := range series {
		bucket := Bucket(sample.Battery)
		statusChanged := emitted && sample.Network != lastStatus
		bucketChanged := emitted && bucket != lastBucket
		if i != 0 && i != last && !statusChanged && !bucketChanged {
			continue
		}
		events = append(events, models.KeyEvent{
			LocationSample: sample,
			IsFirst:        i == 0,
			IsLast:         i == last,
			IsStatusChange: statusChanged,
		})
		lastStatus = sample.Network
		lastBucket = bucket
		emitted = true
	}
	return events
}

// Ordered returns series ascending by timestamp. Samples whose timestamp
// could not be decoded (zero time) keep their input position; the others
// are stable-sorted around them. Already ordered input is returned as is,
// otherwise the result is a copy.
func Ordered(series []models.LocationSample) []models.LocationSample {
	var known []int
	for i, s := range series {
		if !s.Timestamp.IsZero() {
			known = append(known, i)
		}
	}
	sorted := sort.SliceIsSorted(known, func(a, b int) bool {
		return series[known[a]].Timestamp.Before(series[known[b]].Timestamp)
	})
	if sorted {
		return series
	}

	samples := make([]models.LocationSample, len(known))
	for k, i := range known {
		samples[k] = series[i]
	}
	sort.SliceStable(samples, func(a, b int) bool {
		return samples[a].Timestamp.Before(samples[b].Timestamp)
	})

	cp := make([]models.LocationSample, len(series))
	copy(cp, series)
	for k, i := range known {
		cp[i] = samples[k]
	}
	return cp
}

// Summary describes a compressed series for the history panel header.
type Summary struct {
	TotalLocations int `json:"total_locations"`
	KeyEvents      int `json:"key_events"`
}

// Summarize pairs a series with its compression.
func Summarize(series []models.LocationSample, events []models.KeyEvent) Summary {
	return Summary{TotalLocations: len(series), KeyEvents: len(events)}
}
