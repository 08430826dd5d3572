// Package ports declares the collaborators the tracking engine depends on.
// The backend client, the audit feed and the operator console implement
// them; tests substitute the gomock doubles in ./mocks.
package ports

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"fleetwatch/internal/tracking/models"
)

// RosterSource lists every device known to the backend.
type RosterSource interface {
	ListDevices(ctx context.Context) ([]models.Device, error)
}

// HistorySource returns a device's trailing-window location series.
type HistorySource interface {
	GetWeeklyHistory(ctx context.Context, deviceID string) ([]models.LocationSample, error)
}

// DeviceCommander executes destructive lifecycle commands.
type DeviceCommander interface {
	RevokeDevice(ctx context.Context, deviceID string) error
	DeleteDevice(ctx context.Context, deviceID string) error
}

// AuditRefresher reloads the audit log after a command.
type AuditRefresher interface {
	Refresh(ctx context.Context) error
}

// Confirmer asks the operator to approve an irreversible action.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// Notifier surfaces a blocking notice to the operator.
type Notifier interface {
	Notify(ctx context.Context, notice models.Notice)
}
