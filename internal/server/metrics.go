package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the Prometheus collectors for solver runs.
type Metrics struct {
	runs       *prometheus.CounterVec
	iterations *prometheus.HistogramVec
	duration   *prometheus.HistogramVec
	degraded   *prometheus.CounterVec
	checks     *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "descent",
			Name:      "runs_total",
			Help:      "Minimization runs by solver and final status.",
		}, []string{"solver", "status"}),
		iterations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "descent",
			Name:      "run_iterations",
			Help:      "Iterations per minimization run.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 9),
		}, []string{"solver"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "descent",
			Name:      "run_duration_seconds",
			Help:      "Wall time per minimization run.",
			Buckets:   prometheus.ExponentialBuckets(1e-5, 10, 8),
		}, []string{"solver"}),
		degraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "descent",
			Name:      "degraded_steps_total",
			Help:      "Iterations that fell back to steepest descent.",
		}, []string{"solver"}),
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "descent",
			Name:      "derivative_checks_total",
			Help:      "Derivative checks by kind and outcome.",
		}, []string{"kind", "correct"}),
	}
	reg.MustRegister(m.runs, m.iterations, m.duration, m.degraded, m.checks)
	return m
}

func (m *Metrics) observeRun(run *Run, elapsed time.Duration) {
	m.runs.WithLabelValues(run.Solver, run.Status).Inc()
	m.iterations.WithLabelValues(run.Solver).Observe(float64(run.Iterations))
	m.duration.WithLabelValues(run.Solver).Observe(elapsed.Seconds())
	m.degraded.WithLabelValues(run.Solver).Add(float64(run.DegradedSteps))
}

func (m *Metrics) observeCheck(kind string, correct bool) {
	label := "false"
	if correct {
		label = "true"
	}
	m.checks.WithLabelValues(kind, label).Inc()
}
