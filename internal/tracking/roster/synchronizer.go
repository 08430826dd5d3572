// Package roster keeps the locally held device roster in step with the
// backend by polling it on a fixed period.
package roster

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"fleetwatch/internal/platform/metrics"
	"fleetwatch/internal/tracking/models"
	"fleetwatch/internal/tracking/ports"
	"fleetwatch/internal/tracking/state"
	dErrors "fleetwatch/pkg/domain-errors"
)

// DefaultInterval is the poll period used when none is configured.
const DefaultInterval = 10 * time.Second

// Synchronizer polls a RosterSource and applies each result to the store.
type Synchronizer struct {
	source   ports.RosterSource
	state    *state.Store
	interval time.Duration
	seq      atomic.Uint64
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Synchronizer)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Synchronizer) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Synchronizer) {
		s.metrics = m
	}
}

// WithInterval overrides the poll period. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d > 0 {
			s.interval = d
		}
	}
}

// New constructs a Synchronizer writing to st.
func New(source ports.RosterSource, st *state.Store, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		source:   source,
		state:    st,
		interval: DefaultInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Interval reports the configured poll period.
func (s *Synchronizer) Interval() time.Duration {
	return s.interval
}

// Poll fetches the roster once. On success the roster is replaced
// wholesale. On failure the previous roster is kept as it was and the error
// is returned after being logged and counted. Polls never touch the
// selection or its series.
func (s *Synchronizer) Poll(ctx context.Context) error {
	seq := s.seq.Add(1)
	start := time.Now()

	devices, err := s.source.ListDevices(ctx)
	s.metrics.ObservePoll(start, err)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.WarnContext(ctx, "roster poll failed, keeping previous roster",
				"error", err,
				"code", string(dErrors.CodeOf(err)),
				"poll_seq", seq,
			)
		}
		return err
	}

	if s.state.ApplyRoster(seq, devices) {
		s.metrics.IncrementOutOfOrder()
		s.logger.InfoContext(ctx, "roster poll applied out of order",
			"poll_seq", seq,
		)
	}
	s.metrics.SetRosterSize(len(s.state.ActiveRoster()))
	return nil
}

// Run polls every interval until ctx is cancelled. A poll that outlives the
// period does not delay the next one; Run returns once in-flight polls have
// finished.
func (s *Synchronizer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = s.Poll(ctx)
			}()
		}
	}
}

// ActiveRoster returns the non-revoked devices from the last applied poll.
func (s *Synchronizer) ActiveRoster() []models.Device {
	return s.state.ActiveRoster()
}

// Remove drops a device after a confirmed lifecycle command. When the
// device is selected, the selection and its series are cleared in the same
// transition.
func (s *Synchronizer) Remove(deviceID string) (removed, clearedSelection bool) {
	removed, clearedSelection = s.state.RemoveDevice(deviceID)
	s.metrics.SetRosterSize(len(s.state.ActiveRoster()))
	return removed, clearedSelection
}
