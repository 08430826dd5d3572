package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values shared by the counters below.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeDiscard  = "discarded"
	OutcomeDeclined = "declined"
)

// Metrics holds all Prometheus metrics for the console engine.
type Metrics struct {
	RosterPolls       *prometheus.CounterVec
	RosterPollSeconds prometheus.Histogram
	RosterOutOfOrder  prometheus.Counter
	RosterSize        prometheus.Gauge
	HistoryFetches    *prometheus.CounterVec
	Commands          *prometheus.CounterVec
	AuditRefreshes    *prometheus.CounterVec
	BackendRequests   *prometheus.CounterVec
	ValidationErrors  *prometheus.CounterVec
	ForcedLogouts     prometheus.Counter
}

// New creates and registers all metrics on reg. Pass prometheus.DefaultRegisterer
// in production and a fresh prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RosterPolls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetwatch_roster_polls_total",
			Help: "Roster poll attempts by outcome",
		}, []string{"outcome"}),
		RosterPollSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "fleetwatch_roster_poll_duration_seconds",
			Help:    "Duration of roster fetches",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		RosterOutOfOrder: f.NewCounter(prometheus.CounterOpts{
			Name: "fleetwatch_roster_out_of_order_total",
			Help: "Poll results applied after a newer poll had already been applied",
		}),
		RosterSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "fleetwatch_roster_active_devices",
			Help: "Active (non-revoked) devices in the last applied roster",
		}),
		HistoryFetches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetwatch_history_fetches_total",
			Help: "Weekly history fetches by outcome (discarded = stale selection)",
		}, []string{"outcome"}),
		Commands: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetwatch_lifecycle_commands_total",
			Help: "Revoke/delete commands by kind and outcome",
		}, []string{"command", "outcome"}),
		AuditRefreshes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetwatch_audit_refreshes_total",
			Help: "Audit log refreshes by outcome",
		}, []string{"outcome"}),
		BackendRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetwatch_backend_requests_total",
			Help: "Backend requests by operation and error code",
		}, []string{"operation", "code"}),
		ValidationErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetwatch_backend_validation_errors_total",
			Help: "Malformed backend responses treated as empty results",
		}, []string{"operation"}),
		ForcedLogouts: f.NewCounter(prometheus.CounterOpts{
			Name: "fleetwatch_forced_logouts_total",
			Help: "Sessions terminated after an unauthorized backend response",
		}),
	}
}

// ObservePoll records a roster poll outcome and its duration.
// Call with time.Now() captured at the start of the fetch.
func (m *Metrics) ObservePoll(start time.Time, err error) {
	if m == nil {
		return
	}
	m.RosterPollSeconds.Observe(time.Since(start).Seconds())
	m.RosterPolls.WithLabelValues(outcome(err)).Inc()
}

// IncrementOutOfOrder records a poll result overtaking a newer one.
func (m *Metrics) IncrementOutOfOrder() {
	if m == nil {
		return
	}
	m.RosterOutOfOrder.Inc()
}

// SetRosterSize records the active roster size.
func (m *Metrics) SetRosterSize(n int) {
	if m == nil {
		return
	}
	m.RosterSize.Set(float64(n))
}

// IncrementHistoryFetch records a history fetch outcome label.
func (m *Metrics) IncrementHistoryFetch(outcome string) {
	if m == nil {
		return
	}
	m.HistoryFetches.WithLabelValues(outcome).Inc()
}

// IncrementCommand records a lifecycle command outcome.
func (m *Metrics) IncrementCommand(command, outcome string) {
	if m == nil {
		return
	}
	m.Commands.WithLabelValues(command, outcome).Inc()
}

// IncrementAuditRefresh records an audit refresh outcome.
func (m *Metrics) IncrementAuditRefresh(err error) {
	if m == nil {
		return
	}
	m.AuditRefreshes.WithLabelValues(outcome(err)).Inc()
}

// IncrementBackendRequest records one backend call labelled by error code
// ("ok" on success).
func (m *Metrics) IncrementBackendRequest(operation, code string) {
	if m == nil {
		return
	}
	m.BackendRequests.WithLabelValues(operation, code).Inc()
}

// IncrementValidationError records a malformed response.
func (m *Metrics) IncrementValidationError(operation string) {
	if m == nil {
		return
	}
	m.ValidationErrors.WithLabelValues(operation).Inc()
}

// IncrementForcedLogout records a 401-triggered logout.
func (m *Metrics) IncrementForcedLogout() {
	if m == nil {
		return
	}
	m.ForcedLogouts.Inc()
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
