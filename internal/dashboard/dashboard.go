// Package dashboard composes the tracking engine for one operator session:
// the roster synchronizer, the track controller, the lifecycle handler and
// the audit feed, all sharing one state.Store.
package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"fleetwatch/internal/audit"
	"fleetwatch/internal/display"
	"fleetwatch/internal/platform/metrics"
	"fleetwatch/internal/tracking/lifecycle"
	"fleetwatch/internal/tracking/models"
	"fleetwatch/internal/tracking/ports"
	"fleetwatch/internal/tracking/roster"
	"fleetwatch/internal/tracking/state"
	"fleetwatch/internal/tracking/track"
	dErrors "fleetwatch/pkg/domain-errors"
)

// Backend is everything the dashboard needs from the tracking service.
type Backend interface {
	ports.RosterSource
	ports.HistorySource
	ports.DeviceCommander
	audit.Source
}

// Dashboard owns the engine for one session.
type Dashboard struct {
	store    *state.Store
	roster   *roster.Synchronizer
	track    *track.Controller
	commands *lifecycle.Handler
	audit    *audit.Feed
	viewport display.Viewport
	logger   *slog.Logger

	mu         sync.Mutex
	starting   bool
	closed     bool
	generation uint64 // bumped by Stop; a load from an older generation must not start polling
	cancelLoad context.CancelFunc
	cancel     context.CancelFunc
	stopped    chan struct{}
}

type config struct {
	logger       *slog.Logger
	metrics      *metrics.Metrics
	pollInterval time.Duration
	auditLimit   int
	viewport     display.Viewport
}

type Option func(*config)

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(c *config) {
		c.pollInterval = d
	}
}

func WithAuditLimit(limit int) Option {
	return func(c *config) {
		c.auditLimit = limit
	}
}

// WithViewport sets the map viewport used while no track is shown.
func WithViewport(v display.Viewport) Option {
	return func(c *config) {
		c.viewport = v
	}
}

// New wires the engine over backend. Confirmations and notices go to the
// operator through confirmer and notifier.
func New(backend Backend, confirmer ports.Confirmer, notifier ports.Notifier, opts ...Option) *Dashboard {
	cfg := config{
		logger:       slog.Default(),
		pollInterval: roster.DefaultInterval,
		auditLimit:   audit.DefaultLimit,
		viewport:     display.Viewport{Center: display.Point{Lat: -6.175, Lng: 106.827}, Zoom: 13},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	store := state.New()
	synchronizer := roster.New(backend, store,
		roster.WithLogger(cfg.logger),
		roster.WithMetrics(cfg.metrics),
		roster.WithInterval(cfg.pollInterval),
	)
	controller := track.New(backend, store,
		track.WithLogger(cfg.logger),
		track.WithMetrics(cfg.metrics),
	)
	feed := audit.NewFeed(backend,
		audit.WithLogger(cfg.logger),
		audit.WithMetrics(cfg.metrics),
		audit.WithLimit(cfg.auditLimit),
	)
	commands := lifecycle.New(backend, synchronizer, controller, feed, confirmer, notifier,
		lifecycle.WithLogger(cfg.logger),
		lifecycle.WithMetrics(cfg.metrics),
	)

	return &Dashboard{
		store:    store,
		roster:   synchronizer,
		track:    controller,
		commands: commands,
		audit:    feed,
		viewport: cfg.viewport,
		logger:   cfg.logger,
	}
}

// Start loads the roster and the audit log concurrently, then polls the
// roster until Stop. Load failures are logged and leave the views empty;
// only an unauthorized response aborts the start. A Stop during the load
// cancels it and no poll loop is started.
func (d *Dashboard) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return dErrors.New(dErrors.CodeInternal, "dashboard is closed")
	}
	if d.cancel != nil || d.starting {
		d.mu.Unlock()
		return nil
	}
	loadCtx, cancelLoad := context.WithCancel(ctx)
	defer cancelLoad()
	d.starting = true
	d.cancelLoad = cancelLoad
	generation := d.generation
	d.mu.Unlock()

	// The lock is not held during the load: an unauthorized response runs
	// the backend's hook, which may call Stop.
	var (
		g                 errgroup.Group
		pollErr, auditErr error
	)
	g.Go(func() error {
		pollErr = d.roster.Poll(loadCtx)
		return nil
	})
	g.Go(func() error {
		auditErr = d.audit.Refresh(loadCtx)
		return nil
	})
	_ = g.Wait()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.starting = false
	d.cancelLoad = nil

	if d.generation != generation {
		d.logger.InfoContext(ctx, "dashboard stopped during initial load")
		return nil
	}
	if dErrors.HasCode(pollErr, dErrors.CodeUnauthorized) || dErrors.HasCode(auditErr, dErrors.CodeUnauthorized) {
		return dErrors.Wrap(errors.Join(pollErr, auditErr), dErrors.CodeUnauthorized, "session rejected by backend")
	}

	runCtx, cancel := context.WithCancel(ctx)
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		d.roster.Run(runCtx)
	}()
	d.cancel = cancel
	d.stopped = stopped
	d.logger.InfoContext(ctx, "dashboard started",
		"devices", len(d.roster.ActiveRoster()),
		"poll_interval", d.roster.Interval().String(),
	)
	return nil
}

// Stop ends the poll loop, clears the selection and cancels any pending
// history fetch. It is safe to call more than once.
func (d *Dashboard) Stop() {
	d.mu.Lock()
	d.generation++
	cancelLoad, cancel, stopped := d.cancelLoad, d.cancel, d.stopped
	d.cancelLoad, d.cancel, d.stopped = nil, nil, nil
	d.mu.Unlock()

	if cancelLoad != nil {
		cancelLoad()
	}
	if cancel != nil {
		cancel()
		<-stopped
	}
	d.track.Deselect(context.Background())
}

// Close stops the dashboard for good; later Starts fail.
func (d *Dashboard) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.Stop()
	d.track.Close()
}

// Running reports whether the poll loop is active.
func (d *Dashboard) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancel != nil
}

// Snapshot copies the state for display.
func (d *Dashboard) Snapshot() state.Snapshot {
	return d.store.Snapshot()
}

func (d *Dashboard) Roster() *roster.Synchronizer { return d.roster }

func (d *Dashboard) Track() *track.Controller { return d.track }

func (d *Dashboard) Commands() *lifecycle.Handler { return d.commands }

func (d *Dashboard) Audit() *audit.Feed { return d.audit }

// DefaultViewport is the map viewport shown while no track is held.
func (d *Dashboard) DefaultViewport() display.Viewport { return d.viewport }

// RosterView projects the device list as of now.
func (d *Dashboard) RosterView(now time.Time) []display.DeviceRow {
	snap := d.store.Snapshot()
	return display.RosterView(snap.Roster, snap.Selection, now)
}

// TrackView projects the selection's map and history panel.
func (d *Dashboard) TrackView() display.TrackView {
	snap := d.store.Snapshot()
	return display.NewTrackView(snap.Selection, snap.Series, d.viewport)
}

// MapDevices projects the device pins as of now.
func (d *Dashboard) MapDevices(now time.Time) []display.Marker {
	snap := d.store.Snapshot()
	return display.MapDevices(snap.Roster, snap.Selection, now)
}

// Select changes the selection by ID; an empty ID deselects. The history
// loads in the background.
func (d *Dashboard) Select(ctx context.Context, deviceID string) error {
	_, err := d.track.SelectByID(ctx, deviceID)
	return err
}

// AuditEntries returns the held audit log.
func (d *Dashboard) AuditEntries() []models.AuditEntry {
	return d.audit.Entries()
}

// RefreshHistory re-fetches the weekly history of the selection. The
// returned task completes when the series was applied or discarded.
func (d *Dashboard) RefreshHistory(ctx context.Context) (*track.Task, error) {
	return d.track.Refresh(ctx)
}

// RefreshAudit reloads the audit log.
func (d *Dashboard) RefreshAudit(ctx context.Context) error {
	return d.audit.Refresh(ctx)
}

// Revoke erases a device's location data after confirmation.
func (d *Dashboard) Revoke(ctx context.Context, deviceID string) error {
	return d.commands.Revoke(ctx, deviceID)
}

// Delete removes a device and all its data after confirmation.
func (d *Dashboard) Delete(ctx context.Context, deviceID string) error {
	return d.commands.Delete(ctx, deviceID)
}
