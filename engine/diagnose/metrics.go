package diagnose

import (
	"time"

	"github.com/carfix-labs/carfix/engine/domain"
	"github.com/carfix-labs/carfix/pkg/metrics"
)

type outcome string

const (
	outcomeTriaged   outcome = "triaged"
	outcomeMatched   outcome = "matched"
	outcomeGenerated outcome = "generated"
	outcomeNoMatch   outcome = "no_match"
	outcomeFailed    outcome = "failed"
)

// Metrics records diagnosis counts by language and outcome, and latency.
// A nil *Metrics records nothing.
type Metrics struct {
	reg     *metrics.Registry
	latency *metrics.Histogram
}

// NewMetrics registers the diagnosis metrics on reg.
func NewMetrics(reg *metrics.Registry) *Metrics {
	return &Metrics{
		reg: reg,
		latency: reg.Histogram("carfix_diagnose_duration_seconds",
			"Time to answer a diagnosis request.",
			[]float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10}),
	}
}

func (m *Metrics) observe(l domain.Language, o outcome, start time.Time) {
	if m == nil {
		return
	}
	m.reg.Counter(
		metrics.WithLabels("carfix_diagnose_total", "lang", string(l), "outcome", string(o)),
		"Diagnosis requests by language and outcome.",
	).Inc()
	m.latency.Since(start)
}
