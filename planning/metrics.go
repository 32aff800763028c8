package planning

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/warp/capacity-planner/capacity"
)

// Namespace prefixes every metric the planner exports.
const Namespace = "planner"

// Metrics records admission outcomes. A nil *Metrics records nothing.
type Metrics struct {
	decisions      *prometheus.CounterVec
	committedRatio *prometheus.HistogramVec
}

// NewMetrics builds the collectors and registers them on reg when reg is
// non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "admission",
			Name:      "decisions_total",
			Help:      "Capacity admission decisions by bucket kind and outcome.",
		}, []string{"bucket", "outcome"}),
		committedRatio: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "admission",
			Name:      "committed_ratio",
			Help:      "Share of the bucket budget committed after an admitted assignment.",
			Buckets:   []float64{0.25, 0.5, 0.75, 0.9, 1},
		}, []string{"bucket"}),
	}
	if reg != nil {
		reg.MustRegister(m.decisions, m.committedRatio)
	}
	return m
}

// observe records one admission. outcome is "admitted", the rule code of a
// rejection, or "invalid".
func (m *Metrics) observe(bucket capacity.Bucket, d capacity.Decision, err error) {
	if m == nil || bucket == nil {
		return
	}
	kind := string(bucket.Kind())
	switch {
	case err == nil:
		m.decisions.WithLabelValues(kind, "admitted").Inc()
		if d.Budget.IsPositive() {
			ratio, _ := d.Committed.Add(d.Requested).Div(d.Budget).Float64()
			m.committedRatio.WithLabelValues(kind).Observe(ratio)
		}
	case capacity.IsBusinessRule(err):
		m.decisions.WithLabelValues(kind, capacity.RuleOf(err)).Inc()
	default:
		m.decisions.WithLabelValues(kind, "invalid").Inc()
	}
}
