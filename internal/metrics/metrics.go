// Package metrics records case outcomes as prometheus metrics. A run can
// write them to a node_exporter textfile for CI dashboards.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/joshp123/overlap-go/internal/harness"
)

const (
	OutcomePassed    = "passed"
	OutcomeMismatch  = "mismatch"
	OutcomeTimeout   = "timeout"
	OutcomeMissing   = "missing"
	OutcomeSetup     = "setup"
	OutcomeCleanup   = "cleanup"
	OutcomeCancelled = "cancelled"
	OutcomeError     = "error"
)

// Metrics implements harness.Reporter.
type Metrics struct {
	registry *prometheus.Registry

	cases    *prometheus.CounterVec
	inFlight *prometheus.GaugeVec
	overlap  *prometheus.GaugeVec
	duration *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "overlap_cases_total",
			Help: "Finished overlap cases by session, viewport and outcome.",
		}, []string{"session", "viewport", "outcome"}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "overlap_cases_in_flight",
			Help: "Cases currently running per session.",
		}, []string{"session"}),
		overlap: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "overlap_detected",
			Help: "1 when the panels overlapped in the last evaluated case, else 0.",
		}, []string{"session", "viewport"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "overlap_case_duration_seconds",
			Help:    "Wall time of a case including the page reset.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 50},
		}, []string{"session"}),
	}
	m.registry.MustRegister(m.cases, m.inFlight, m.overlap, m.duration)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) CaseStarted(c harness.Case) {
	m.inFlight.WithLabelValues(c.Session).Inc()
}

func (m *Metrics) CaseFinished(r harness.CaseResult) {
	session := r.Case.Session
	viewport := r.Case.Config.Size()
	m.inFlight.WithLabelValues(session).Dec()
	m.cases.WithLabelValues(session, viewport, Outcome(r)).Inc()
	m.duration.WithLabelValues(session).Observe(r.Duration.Seconds())
	if r.Reached(harness.StateEvaluated) {
		v := 0.0
		if r.Overlap {
			v = 1
		}
		m.overlap.WithLabelValues(session, viewport).Set(v)
	}
}

// WriteTextfile writes all metrics in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

// Outcome classifies a result for the outcome label.
func Outcome(r harness.CaseResult) string {
	var (
		setup    *harness.SetupError
		mismatch *harness.MismatchError
		timeout  *harness.ElementTimeoutError
		missing  *harness.ElementMissingError
	)
	switch {
	case r.Passed():
		return OutcomePassed
	case r.Cancelled():
		return OutcomeCancelled
	case r.Err == nil && r.CleanupErr != nil:
		return OutcomeCleanup
	case errors.As(r.Err, &setup):
		return OutcomeSetup
	case errors.As(r.Err, &mismatch):
		return OutcomeMismatch
	case errors.As(r.Err, &timeout):
		return OutcomeTimeout
	case errors.As(r.Err, &missing):
		return OutcomeMissing
	}
	return OutcomeError
}
