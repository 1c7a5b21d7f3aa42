package cadence

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for reset passes. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	outcomes    *prometheus.CounterVec
	failures    *prometheus.CounterVec
	runDuration prometheus.Histogram
	lastRun     prometheus.Gauge
}

// MustNewMetrics registers the reset collectors with reg, reusing collectors
// that are already registered. Any other registration error panics.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	return &Metrics{
		outcomes: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cadence",
				Subsystem: "reset",
				Name:      "items_total",
				Help:      "Items evaluated by reset passes, by outcome.",
			},
			[]string{"outcome"},
		)),
		failures: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cadence",
				Subsystem: "reset",
				Name:      "failures_total",
				Help:      "Item evaluations that failed, by kind.",
			},
			[]string{"kind"},
		)),
		runDuration: register(reg, prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "cadence",
				Subsystem: "reset",
				Name:      "run_duration_seconds",
				Help:      "Wall time of a reset pass.",
				Buckets:   prometheus.DefBuckets,
			},
		)),
		lastRun: register(reg, prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "cadence",
				Subsystem: "reset",
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time the last reset pass finished.",
			},
		)),
	}
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	err := reg.Register(c)
	if err == nil {
		return c
	}

	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		if existing, ok := already.ExistingCollector.(T); ok {
			return existing
		}
	}
	panic(err)
}

// ObserveRun records the result of one pass.
func (m *Metrics) ObserveRun(s Summary, took time.Duration, finished time.Time) {
	if m == nil {
		return
	}

	m.outcomes.WithLabelValues("unchanged").Add(float64(s.Unchanged))
	m.outcomes.WithLabelValues("initialized").Add(float64(s.Initialized))
	m.outcomes.WithLabelValues("reset").Add(float64(s.Reset))
	m.outcomes.WithLabelValues("raced").Add(float64(s.Raced))
	m.outcomes.WithLabelValues("failed").Add(float64(s.Failed))

	for _, f := range s.Failures {
		kind := "permanent"
		if f.Transient {
			kind = "transient"
		}
		m.failures.WithLabelValues(kind).Inc()
	}

	m.runDuration.Observe(took.Seconds())
	m.lastRun.Set(float64(finished.Unix()))
}
