// Package handler serves the display projections over HTTP for map and
// list widgets.
package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fleetwatch/internal/audit"
	"fleetwatch/internal/display"
	"fleetwatch/internal/platform/middleware"
	"fleetwatch/internal/tracking/models"
	dErrors "fleetwatch/pkg/domain-errors"
	"fleetwatch/pkg/platform/httputil"
	"fleetwatch/pkg/requestcontext"
)

// Dashboard is the read side of the engine plus selection.
type Dashboard interface {
	RosterView(now time.Time) []display.DeviceRow
	TrackView() display.TrackView
	MapDevices(now time.Time) []display.Marker
	AuditEntries() []models.AuditEntry
	Select(ctx context.Context, deviceID string) error
}

// Handler serves the display API.
type Handler struct {
	dashboard Dashboard
	gatherer  prometheus.Gatherer
	logger    *slog.Logger
}

// New creates a Handler. gatherer backs /metrics.
func New(dashboard Dashboard, gatherer prometheus.Gatherer, logger *slog.Logger) *Handler {
	return &Handler{dashboard: dashboard, gatherer: gatherer, logger: logger}
}

// Register mounts the routes on r.
func (h *Handler) Register(r chi.Router) {
	api := chi.NewRouter()
	api.Use(middleware.Recovery(h.logger))
	api.Use(middleware.RequestID)
	api.Use(middleware.RequestTime)
	api.Use(middleware.Logger(h.logger))
	api.Use(chimw.Timeout(10 * time.Second))
	api.Get("/roster", h.handleRoster)
	api.Get("/track", h.handleTrack)
	api.Get("/map", h.handleMap)
	api.Put("/selection", h.handleSelect)
	api.Get("/audit", h.handleAudit)

	r.Mount("/api", api)
	r.Get("/healthz", h.handleHealth)
	if h.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}
}

// Router returns a chi router with every route registered.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func (h *Handler) handleRoster(w http.ResponseWriter, r *http.Request) {
	rows := h.dashboard.RosterView(requestcontext.Now(r.Context()))
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"devices": rows})
}

func (h *Handler) handleTrack(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.dashboard.TrackView())
}

func (h *Handler) handleMap(w http.ResponseWriter, r *http.Request) {
	markers := h.dashboard.MapDevices(requestcontext.Now(r.Context()))
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"markers": markers})
}

type selectRequest struct {
	DeviceID string `json:"device_id"`
}

func (h *Handler) handleSelect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req selectRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.dashboard.Select(ctx, req.DeviceID); err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "failed to change selection",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}
	if req.DeviceID == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"device_id": req.DeviceID})
}

type auditItem struct {
	models.AuditEntry
	Category    audit.EventCategory `json:"category"`
	ActionLabel string              `json:"action_label"`
}

func (h *Handler) handleAudit(w http.ResponseWriter, _ *http.Request) {
	entries := h.dashboard.AuditEntries()
	items := make([]auditItem, len(entries))
	for i, e := range entries {
		items[i] = auditItem{
			AuditEntry:  e,
			Category:    audit.Category(e.Action),
			ActionLabel: audit.HumanAction(e.Action),
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"logs": items})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
