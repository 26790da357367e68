// Package metrics exposes optimizer and refinement activity as Prometheus
// metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/danielpatrickdp/subcrack/internal/anneal"
)

const namespace = "subcrack"

// Metrics holds the collectors. Create one per registry.
type Metrics struct {
	steps       *prometheus.CounterVec
	runs        *prometheus.CounterVec
	score       *prometheus.GaugeVec
	temperature *prometheus.GaugeVec
	duration    *prometheus.HistogramVec
	swaps       *prometheus.CounterVec
	evalFail    *prometheus.CounterVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		// Labels: language, decision (accept, reject)
		steps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "steps_total",
			Help:      "Metropolis steps by acceptance decision",
		}, []string{"language", "decision"}),

		// Labels: language, outcome (completed, cancelled)
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "runs_total",
			Help:      "Finished optimizer runs",
		}, []string{"language", "outcome"}),

		score: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "final_score",
			Help:      "Plausibility of the most recent run's final mapping",
		}, []string{"language"}),

		temperature: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "temperature",
			Help:      "Current temperature of the most recent step",
		}, []string{"language"}),

		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "run_duration_seconds",
			Help:      "Wall time of optimizer runs",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"language"}),

		swaps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refine",
			Name:      "swaps_total",
			Help:      "Operator swaps applied during refinement",
		}, []string{"language"}),

		// Labels: check (bijection, length_preserved, ...)
		evalFail: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "eval",
			Name:      "failures_total",
			Help:      "Blocking validation checks that failed",
		}, []string{"check"}),
	}
}

// Observer returns an anneal.Observer that records one run for language.
func (m *Metrics) Observer(language string) anneal.Observer {
	return &runObserver{
		accept:      m.steps.WithLabelValues(language, "accept"),
		reject:      m.steps.WithLabelValues(language, "reject"),
		temperature: m.temperature.WithLabelValues(language),
		m:           m,
		language:    language,
	}
}

// ObserveDuration records the wall time of a run.
func (m *Metrics) ObserveDuration(language string, d time.Duration) {
	m.duration.WithLabelValues(language).Observe(d.Seconds())
}

// Swap counts one refinement swap.
func (m *Metrics) Swap(language string) {
	m.swaps.WithLabelValues(language).Inc()
}

// EvalFailure counts a failed blocking check.
func (m *Metrics) EvalFailure(check string) {
	m.evalFail.WithLabelValues(check).Inc()
}

type runObserver struct {
	accept, reject prometheus.Counter
	temperature    prometheus.Gauge
	m              *Metrics
	language       string
}

func (o *runObserver) OnStep(s anneal.Step) {
	if s.Decision.Accepted {
		o.accept.Inc()
	} else {
		o.reject.Inc()
	}
	if s.Phase == anneal.PhaseCool {
		o.temperature.Set(s.Temperature)
	}
}

func (o *runObserver) OnFinish(r anneal.Result) {
	outcome := "completed"
	if r.Cancelled {
		outcome = "cancelled"
	}
	o.m.runs.WithLabelValues(o.language, outcome).Inc()
	o.m.score.WithLabelValues(o.language).Set(r.Score)
	o.temperature.Set(r.FinalTemperature)
}
