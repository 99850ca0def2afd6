// Package metrics implementa count.Metrics con contadores Prometheus.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jhoicas/stockcount-api/internal/application/count"
)

var _ count.Metrics = (*CountMetrics)(nil)

// CountMetrics contadores del motor de conteo.
type CountMetrics struct {
	captures      *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	linesApproved prometheus.Counter
	ledgerPosted  prometheus.Counter
	conflicts     *prometheus.CounterVec
}

// NewCountMetrics registra los contadores en reg (prometheus.DefaultRegisterer en producción).
func NewCountMetrics(reg prometheus.Registerer) *CountMetrics {
	f := promauto.With(reg)
	return &CountMetrics{
		// captures cuenta capturas por modo (add|set) y resultado (applied|rejected)
		captures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stockcount_captures_total",
			Help: "Total count captures by mode and result",
		}, []string{"mode", "result"}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stockcount_session_transitions_total",
			Help: "Total count session status transitions by target status",
		}, []string{"status"}),
		linesApproved: f.NewCounter(prometheus.CounterOpts{
			Name: "stockcount_lines_approved_total",
			Help: "Total count lines approved by reviewers",
		}),
		ledgerPosted: f.NewCounter(prometheus.CounterOpts{
			Name: "stockcount_ledger_entries_posted_total",
			Help: "Total count_adjustment entries written to the stock ledger",
		}),
		conflicts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stockcount_snapshot_conflicts_total",
			Help: "Total movement-after-snapshot detections by blocking flag",
		}, []string{"blocking"}),
	}
}

func (m *CountMetrics) CaptureApplied(mode, result string) {
	m.captures.WithLabelValues(mode, result).Inc()
}

func (m *CountMetrics) SessionTransitioned(to string) {
	m.transitions.WithLabelValues(to).Inc()
}

func (m *CountMetrics) LinesApproved(n int) {
	m.linesApproved.Add(float64(n))
}

func (m *CountMetrics) LedgerEntriesPosted(n int) {
	m.ledgerPosted.Add(float64(n))
}

func (m *CountMetrics) ConflictDetected(blocking bool) {
	m.conflicts.WithLabelValues(strconv.FormatBool(blocking)).Inc()
}

// Handler expone el registro por HTTP (se monta en /metrics con el adaptador de fiber).
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
