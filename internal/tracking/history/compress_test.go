package history

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetwatch/internal/tracking/models"
)

var t0 = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func sample(minute, battery int, network models.NetworkState) models.LocationSample {
	return models.LocationSample{
		Timestamp: t0.Add(time.Duration(minute) * time.Minute),
		Lat:       -6.175 + float64(minute)/1000,
		Lng:       106.827,
		Battery:   battery,
		Network:   network,
	}
}

func timestamps(events []models.KeyEvent) []time.Time {
	out := make([]time.Time, len(events))
	for i, e := range events {
		out[i] = e.Timestamp
	}
	return out
}

func TestCompress(t *testing.T) {
	on, off := models.NetworkOnline, models.NetworkOffline

	t.Run("empty input yields empty output", func(t *testing.T) {
		assert.Empty(t, Compress(nil))
		assert.Empty(t, Compress([]models.LocationSample{}))
	})

	t.Run("single sample is first and last", func(t *testing.T) {
		events := Compress([]models.LocationSample{sample(0, 50, on)})
		require.Len(t, events, 1)
		assert.True(t, events[0].IsFirst)
		assert.True(t, events[0].IsLast)
		assert.False(t, events[0].IsStatusChange)
	})

	t.Run("status and bucket change example", func(t *testing.T) {
		series := []models.LocationSample{
			sample(0, 50, on),
			sample(1, 55, on),
			sample(2, 10, off),
			sample(3, 12, off),
		}
		events := Compress(series)

		require.Len(t, events, 3)
		assert.Equal(t, []time.Time{series[0].Timestamp, series[2].Timestamp, series[3].Timestamp}, timestamps(events))
		assert.True(t, events[0].IsFirst)
		assert.False(t, events[0].IsStatusChange)
		assert.True(t, events[1].IsStatusChange)
		assert.False(t, events[1].IsFirst)
		assert.False(t, events[1].IsLast)
		assert.True(t, events[2].IsLast)
		assert.False(t, events[2].IsStatusChange)
	})

	t.Run("bucket change alone is emitted without status flag", func(t *testing.T) {
		events := Compress([]models.LocationSample{
			sample(0, 65, on),
			sample(1, 59, on),
			sample(2, 58, on),
			sample(3, 57, on),
		})
		require.Len(t, events, 3)
		assert.Equal(t, 59, events[1].Battery)
		assert.False(t, events[1].IsStatusChange)
	})

	t.Run("comparison is against the last emitted event", func(t *testing.T) {
		// 41 -> 40 stays in bucket 2, 39 crosses into bucket 1 relative to the
		// last emitted point even though each step is tiny.
		events := Compress([]models.LocationSample{
			sample(0, 41, on),
			sample(1, 40, on),
			sample(2, 39, on),
			sample(3, 38, on),
			sample(4, 38, on),
		})
		require.Len(t, events, 3)
		assert.Equal(t, []int{41, 39, 38}, []int{events[0].Battery, events[1].Battery, events[2].Battery})
	})

	t.Run("status flapping emits every transition", func(t *testing.T) {
		events := Compress([]models.LocationSample{
			sample(0, 90, on),
			sample(1, 90, off),
			sample(2, 90, on),
			sample(3, 90, on),
			sample(4, 90, on),
		})
		require.Len(t, events, 4)
		assert.True(t, events[1].IsStatusChange)
		assert.True(t, events[2].IsStatusChange)
		assert.True(t, events[3].IsLast)
	})

	t.Run("unsorted input is ordered without mutating the caller slice", func(t *testing.T) {
		series := []models.LocationSample{sample(2, 50, on), sample(0, 50, on), sample(1, 50, on)}
		events := Compress(series)

		require.Len(t, events, 2)
		assert.Equal(t, t0, events[0].Timestamp)
		assert.Equal(t, t0.Add(2*time.Minute), events[1].Timestamp)
		assert.Equal(t, t0.Add(2*time.Minute), series[0].Timestamp)
	})
}

func TestOrdered(t *testing.T) {
	on := models.NetworkOnline
	undecoded := models.LocationSample{Lat: 9, Lng: 9, Battery: 50, Network: on}

	t.Run("ordered input is returned as is", func(t *testing.T) {
		series := []models.LocationSample{sample(0, 50, on), undecoded, sample(1, 50, on)}
		got := Ordered(series)
		assert.Same(t, &series[0], &got[0])
	})

	t.Run("undecoded timestamps keep their position", func(t *testing.T) {
		series := []models.LocationSample{sample(2, 50, on), undecoded, sample(0, 50, on), sample(1, 50, on)}
		got := Ordered(series)

		require.Len(t, got, 4)
		assert.Equal(t, t0, got[0].Timestamp)
		assert.True(t, got[1].Timestamp.IsZero())
		assert.Equal(t, t0.Add(time.Minute), got[2].Timestamp)
		assert.Equal(t, t0.Add(2*time.Minute), got[3].Timestamp)
		assert.Equal(t, t0.Add(2*time.Minute), series[0].Timestamp, "input untouched")
	})

	t.Run("an undecoded sample is not hoisted to the start", func(t *testing.T) {
		series := []models.LocationSample{sample(1, 50, on), undecoded, sample(0, 50, on)}
		events := Compress(series)

		require.NotEmpty(t, events)
		assert.True(t, events[0].IsFirst)
		assert.Equal(t, t0, events[0].Timestamp)
		assert.Equal(t, t0.Add(time.Minute), events[len(events)-1].Timestamp)
	})
}

func TestCompress_Invariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	networks := []models.NetworkState{models.NetworkOnline, models.NetworkOffline}

	for n := 1; n <= 60; n++ {
		t.Run(fmt.Sprintf("length %d", n), func(t *testing.T) {
			series := make([]models.LocationSample, n)
			for i := range series {
				series[i] = sample(i, rng.Intn(101), networks[rng.Intn(2)])
			}
			events := Compress(series)

			require.NotEmpty(t, events)
			assert.LessOrEqual(t, len(events), n)
			assert.Equal(t, series[0].Timestamp, events[0].Timestamp)
			assert.Equal(t, series[n-1].Timestamp, events[len(events)-1].Timestamp)
			assert.True(t, events[0].IsFirst)
			assert.True(t, events[len(events)-1].IsLast)
			for i := 1; i < len(events); i++ {
				assert.True(t, events[i-1].Timestamp.Before(events[i].Timestamp), "output must be an ordered subsequence")
			}
		})
	}
}

func TestBucket(t *testing.T) {
	assert.Equal(t, 0, Bucket(0))
	assert.Equal(t, 0, Bucket(19))
	assert.Equal(t, 1, Bucket(20))
	assert.Equal(t, 4, Bucket(99))
	assert.Equal(t, 5, Bucket(100))
	assert.Equal(t, -1, Bucket(-1))
}

func TestSummarize(t *testing.T) {
	series := []models.LocationSample{sample(0, 50, models.NetworkOnline), sample(1, 50, models.NetworkOnline), sample(2, 50, models.NetworkOnline)}
	s := Summarize(series, Compress(series))
	assert.Equal(t, Summary{TotalLocations: 3, KeyEvents: 2}, s)
}
