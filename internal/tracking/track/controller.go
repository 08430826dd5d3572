// Package track loads the weekly history of the selected device.
//
// Every fetch is tied to a state.Ticket. A result is applied only while its
// ticket still matches the live selection, so a slow response for a device
// the operator has since moved away from is dropped instead of overwriting
// the newer track.
package track

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"fleetwatch/internal/platform/metrics"
	"fleetwatch/internal/tracking/models"
	"fleetwatch/internal/tracking/ports"
	"fleetwatch/internal/tracking/state"
	dErrors "fleetwatch/pkg/domain-errors"
	"fleetwatch/pkg/platform/sentinel"
	"fleetwatch/pkg/requestcontext"
)

// Task is the handle of one history fetch.
type Task struct {
	ticket state.Ticket
	done   chan struct{}
	cancel context.CancelFunc
}

// Done is closed once the fetch has finished or been abandoned.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Cancel abandons the fetch. Its result, if any arrives, is discarded.
func (t *Task) Cancel() {
	t.cancel()
}

// Wait blocks until the task is done.
func (t *Task) Wait() {
	<-t.done
}

// DeviceID reports which device the task fetches for; empty for a
// deselection.
func (t *Task) DeviceID() string {
	return t.ticket.DeviceID
}

func completedTask(ticket state.Ticket) *Task {
	t := &Task{ticket: ticket, done: make(chan struct{}), cancel: func() {}}
	close(t.done)
	return t
}

// Controller owns selection changes and the history fetches they trigger.
type Controller struct {
	source  ports.HistorySource
	state   *state.Store
	logger  *slog.Logger
	metrics *metrics.Metrics

	base context.Context
	stop context.CancelFunc

	mu      sync.Mutex
	pending *Task
}

type Option func(*Controller)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// New constructs a Controller. Fetches run until Close is called.
func New(source ports.HistorySource, st *state.Store, opts ...Option) *Controller {
	base, stop := context.WithCancel(context.Background())
	c := &Controller{
		source: source,
		state:  st,
		logger: slog.Default(),
		base:   base,
		stop:   stop,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnSelect changes the selection. A non-nil device becomes the selection,
// its held series is cleared and the weekly history is fetched in the
// background. A nil device clears the selection without fetching. Either
// way the previous pending fetch is cancelled.
//
// The fetch is detached from ctx's cancellation but keeps its request ID.
func (c *Controller) OnSelect(ctx context.Context, device *models.Device) (*Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelPendingLocked()
	ticket, err := c.state.Select(device)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "device is not in the active roster")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to select device")
	}
	if device == nil {
		return completedTask(ticket), nil
	}
	return c.fetchLocked(ctx, ticket), nil
}

// SelectByID resolves deviceID against the active roster and selects it.
// An empty ID deselects.
func (c *Controller) SelectByID(ctx context.Context, deviceID string) (*Task, error) {
	if deviceID == "" {
		return c.OnSelect(ctx, nil)
	}
	device, ok := c.state.ActiveDevice(deviceID)
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "device is not in the active roster")
	}
	return c.OnSelect(ctx, &device)
}

// Deselect clears the selection and cancels any pending fetch.
func (c *Controller) Deselect(ctx context.Context) {
	_, _ = c.OnSelect(ctx, nil)
}

// Refresh re-fetches the history of the current selection.
func (c *Controller) Refresh(ctx context.Context) (*Task, error) {
	selected := c.state.Selection()
	if selected == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "no device selected")
	}
	return c.OnSelect(ctx, selected)
}

// Release cancels the pending fetch when it belongs to deviceID. The
// lifecycle handler calls it after the device was removed.
func (c *Controller) Release(deviceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil && c.pending.ticket.DeviceID == deviceID {
		c.cancelPendingLocked()
	}
}

// Selection returns the selected device, or nil.
func (c *Controller) Selection() *models.Device {
	return c.state.Selection()
}

// Series returns the held history of the selection.
func (c *Controller) Series() []models.LocationSample {
	return c.state.Series()
}

// Close cancels every fetch, pending or future.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelPendingLocked()
	c.stop()
}

func (c *Controller) cancelPendingLocked() {
	if c.pending != nil {
		c.pending.cancel()
		c.pending = nil
	}
}

func (c *Controller) fetchLocked(ctx context.Context, ticket state.Ticket) *Task {
	fetchCtx, cancel := context.WithCancel(c.base)
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		fetchCtx = requestcontext.WithRequestID(fetchCtx, requestID)
	}
	task := &Task{ticket: ticket, done: make(chan struct{}), cancel: cancel}
	c.pending = task

	go func() {
		defer close(task.done)
		defer cancel()
		c.run(fetchCtx, task)

		c.mu.Lock()
		if c.pending == task {
			c.pending = nil
		}
		c.mu.Unlock()
	}()
	return task
}

func (c *Controller) run(ctx context.Context, task *Task) {
	deviceID := task.ticket.DeviceID
	series, err := c.source.GetWeeklyHistory(ctx, deviceID)
	if ctx.Err() != nil {
		c.metrics.IncrementHistoryFetch(metrics.OutcomeDiscard)
		c.logger.DebugContext(ctx, "history fetch abandoned", "device_id", deviceID)
		return
	}
	if err != nil {
		// The series is cleared to empty on failure, unless the selection
		// moved on in the meantime.
		if !c.state.ApplySeries(task.ticket, nil) {
			c.metrics.IncrementHistoryFetch(metrics.OutcomeDiscard)
			return
		}
		c.metrics.IncrementHistoryFetch(metrics.OutcomeFailure)
		c.logger.WarnContext(ctx, "history fetch failed",
			"error", err,
			"code", string(dErrors.CodeOf(err)),
			"device_id", deviceID,
		)
		return
	}
	if !c.state.ApplySeries(task.ticket, series) {
		c.metrics.IncrementHistoryFetch(metrics.OutcomeDiscard)
		c.logger.DebugContext(ctx, "discarding stale history response", "device_id", deviceID)
		return
	}
	c.metrics.IncrementHistoryFetch(metrics.OutcomeSuccess)
	c.logger.DebugContext(ctx, "history loaded", "device_id", deviceID, "samples", len(series))
}
