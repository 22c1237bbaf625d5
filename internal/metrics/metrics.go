// Package metrics exposes trim and study statistics to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ikhana_trim"

// Collector records solver evaluations, trim runs and study jobs. It
// implements trim.Observer.
type Collector struct {
	evaluations    *prometheus.CounterVec
	evaluationTime prometheus.Histogram
	runs           *prometheus.CounterVec
	runTime        prometheus.Histogram
	refinements    prometheus.Histogram
	jobsActive     prometheus.Gauge
	jobsFinished   *prometheus.CounterVec
}

// New registers the collectors with reg. A nil reg uses a private registry.
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Collector{
		evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Aerodynamic solves performed for objective and constraint evaluations.",
		}, []string{"result"}),
		evaluationTime: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Duration of one aerodynamic solve.",
			Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 10),
		}),
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished trim runs by minimizer convergence.",
		}, []string{"converged"}),
		runTime: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of one trim run including refinement.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 3, 10),
		}),
		refinements: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refinements",
			Help:      "Refinement re-runs per trim run.",
			Buckets:   []float64{1, 2, 3, 5, 10, 20, 50},
		}),
		jobsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_active",
			Help:      "Study jobs currently running.",
		}),
		jobsFinished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_finished_total",
			Help:      "Study jobs by final status.",
		}, []string{"status"}),
	}
}

// ObserveEvaluation records one solve.
func (c *Collector) ObserveEvaluation(d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.evaluations.WithLabelValues(result).Inc()
	c.evaluationTime.Observe(d.Seconds())
}

// ObserveRun records one finished trim run.
func (c *Collector) ObserveRun(converged bool, d time.Duration) {
	label := "false"
	if converged {
		label = "true"
	}
	c.runs.WithLabelValues(label).Inc()
	c.runTime.Observe(d.Seconds())
}

// ObserveRefinements records the refinement count of one run.
func (c *Collector) ObserveRefinements(n int) {
	c.refinements.Observe(float64(n))
}

// JobStarted marks a study job as running.
func (c *Collector) JobStarted() {
	c.jobsActive.Inc()
}

// JobFinished marks a study job as done with status.
func (c *Collector) JobFinished(status string) {
	c.jobsActive.Dec()
	c.jobsFinished.WithLabelValues(status).Inc()
}
