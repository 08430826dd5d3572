// Package lifecycle executes the destructive device commands: revoke
// (stop tracking and erase location data) and delete (erase the device and
// everything recorded for it).
//
// A command is a two-step transaction. The backend call is authoritative;
// once it succeeds the local roster is patched and the audit log is
// reloaded on a best-effort basis.
package lifecycle

import (
	"context"
	"log/slog"

	"fleetwatch/internal/platform/metrics"
	"fleetwatch/internal/tracking/models"
	"fleetwatch/internal/tracking/ports"
	dErrors "fleetwatch/pkg/domain-errors"
	"fleetwatch/pkg/requestcontext"
)

// Command names a lifecycle command.
type Command string

const (
	CommandRevoke Command = "revoke"
	CommandDelete Command = "delete"
)

// Operator-facing texts.
const (
	RevokePrompt  = "WARNING: This will PERMANENTLY DELETE all location data!\n\nAre you sure?"
	DeletePrompt  = "WARNING: This will PERMANENTLY DELETE the device and ALL data!\n\nThis cannot be undone. Are you sure?"
	RevokeSuccess = "Device revoked and all data deleted successfully"
	DeleteSuccess = "Device and all data permanently deleted"
	RevokeFailure = "Failed to revoke device"
	DeleteFailure = "Failed to delete device"
)

// Roster removes a device from the local roster, clearing the selection in
// the same transition when it was selected.
type Roster interface {
	Remove(deviceID string) (removed, clearedSelection bool)
}

// Tracker abandons an in-flight history fetch for a removed device.
type Tracker interface {
	Release(deviceID string)
}

// Handler runs revoke and delete commands.
type Handler struct {
	commander ports.DeviceCommander
	roster    Roster
	tracker   Tracker
	audit     ports.AuditRefresher
	confirmer ports.Confirmer
	notifier  ports.Notifier
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// New constructs a Handler.
func New(
	commander ports.DeviceCommander,
	roster Roster,
	tracker Tracker,
	audit ports.AuditRefresher,
	confirmer ports.Confirmer,
	notifier ports.Notifier,
	opts ...Option,
) *Handler {
	h := &Handler{
		commander: commander,
		roster:    roster,
		tracker:   tracker,
		audit:     audit,
		confirmer: confirmer,
		notifier:  notifier,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type command struct {
	name    Command
	event   string
	prompt  string
	success string
	failure string
	call    func(ctx context.Context, deviceID string) error
}

// Revoke stops tracking deviceID and erases its location data.
func (h *Handler) Revoke(ctx context.Context, deviceID string) error {
	return h.execute(ctx, command{
		name:    CommandRevoke,
		event:   "device_revoked",
		prompt:  RevokePrompt,
		success: RevokeSuccess,
		failure: RevokeFailure,
		call:    h.commander.RevokeDevice,
	}, deviceID)
}

// Delete erases deviceID and everything recorded for it.
func (h *Handler) Delete(ctx context.Context, deviceID string) error {
	return h.execute(ctx, command{
		name:    CommandDelete,
		event:   "device_deleted",
		prompt:  DeletePrompt,
		success: DeleteSuccess,
		failure: DeleteFailure,
		call:    h.commander.DeleteDevice,
	}, deviceID)
}

func (h *Handler) execute(ctx context.Context, cmd command, deviceID string) error {
	if deviceID == "" {
		return dErrors.New(dErrors.CodeBadRequest, "device ID required")
	}

	ok, err := h.confirmer.Confirm(ctx, cmd.prompt)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read confirmation")
	}
	if !ok {
		h.metrics.IncrementCommand(string(cmd.name), metrics.OutcomeDeclined)
		return dErrors.New(dErrors.CodeDeclined, "operator declined "+string(cmd.name))
	}

	if err := cmd.call(ctx, deviceID); err != nil {
		h.metrics.IncrementCommand(string(cmd.name), metrics.OutcomeFailure)
		h.logger.ErrorContext(ctx, "lifecycle command rejected",
			"error", err,
			"command", string(cmd.name),
			"device_id", deviceID,
		)
		h.notifier.Notify(ctx, models.Notice{Level: models.NoticeError, Message: cmd.failure})
		return dErrors.Wrap(err, dErrors.CodeCommandRejected, cmd.failure)
	}

	// The backend has committed; local state follows unconditionally.
	removed, clearedSelection := h.roster.Remove(deviceID)
	h.tracker.Release(deviceID)
	h.metrics.IncrementCommand(string(cmd.name), metrics.OutcomeSuccess)
	h.logAudit(ctx, cmd.event,
		"device_id", deviceID,
		"removed_locally", removed,
		"selection_cleared", clearedSelection,
	)

	if err := h.audit.Refresh(ctx); err != nil {
		h.logger.WarnContext(ctx, "audit refresh after command failed",
			"error", err,
			"command", string(cmd.name),
			"device_id", deviceID,
		)
	}

	h.notifier.Notify(ctx, models.Notice{Level: models.NoticeInfo, Message: cmd.success})
	return nil
}

func (h *Handler) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	if h.logger != nil {
		h.logger.InfoContext(ctx, event, args...)
	}
}
