// Package audit holds the most recent audit log entries reported by the
// backend and classifies their actions.
package audit

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"fleetwatch/internal/platform/metrics"
	"fleetwatch/internal/tracking/models"
	dErrors "fleetwatch/pkg/domain-errors"
)

// DefaultLimit is the number of entries fetched per refresh.
const DefaultLimit = 50

// Source lists the latest audit entries, newest first.
type Source interface {
	ListAuditLogs(ctx context.Context, limit int) ([]models.AuditEntry, error)
}

// Feed caches the latest audit entries. A failed refresh keeps the
// previous entries.
type Feed struct {
	source  Source
	limit   int
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu          sync.RWMutex
	entries     []models.AuditEntry
	refreshedAt time.Time
}

type Option func(*Feed)

func WithLogger(logger *slog.Logger) Option {
	return func(f *Feed) {
		f.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Feed) {
		f.metrics = m
	}
}

// WithLimit sets the entry count per refresh. Non-positive values are
// ignored.
func WithLimit(limit int) Option {
	return func(f *Feed) {
		if limit > 0 {
			f.limit = limit
		}
	}
}

// NewFeed constructs a Feed over source.
func NewFeed(source Source, opts ...Option) *Feed {
	f := &Feed{source: source, limit: DefaultLimit, logger: slog.Default()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Refresh reloads the latest entries.
func (f *Feed) Refresh(ctx context.Context) error {
	entries, err := f.source.ListAuditLogs(ctx, f.limit)
	f.metrics.IncrementAuditRefresh(err)
	if err != nil {
		f.logger.WarnContext(ctx, "audit refresh failed, keeping previous entries",
			"error", err,
			"code", string(dErrors.CodeOf(err)),
		)
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = slices.Clone(entries)
	f.refreshedAt = time.Now()
	return nil
}

// Entries returns a copy of the held entries.
func (f *Feed) Entries() []models.AuditEntry {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.entries)
}

// RefreshedAt reports when the last successful refresh completed.
func (f *Feed) RefreshedAt() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.refreshedAt
}

// Limit reports the entry count requested per refresh.
func (f *Feed) Limit() int {
	return f.limit
}
