// Package metrics exports inference and HTTP statistics to Prometheus and
// keeps a small in-process summary for the dashboard.
package metrics

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/chosenoffset/mamdani/pkg/mamdani"
)

const namespace = "mamdani"

// Result labels for the computations counter.
const (
	ResultOK              = "ok"
	ResultMissingInput    = "missing_input"
	ResultUndefinedOutput = "undefined_output"
	ResultError           = "error"
)

// Result classifies an inference error for labelling.
func Result(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, mamdani.ErrMissingInput):
		return ResultMissingInput
	case errors.Is(err, mamdani.ErrUndefinedOutput):
		return ResultUndefinedOutput
	default:
		return ResultError
	}
}

// InferenceMetrics implements mamdani.Observer.
type InferenceMetrics struct {
	computations *prometheus.CounterVec
	latency      prometheus.Histogram
	ruleStrength *prometheus.HistogramVec
	output       *prometheus.GaugeVec

	total     int64 // All inferences
	failures  int64 // Inferences that returned an error
	totalTime int64 // Sum of inference times (nanoseconds)
	maxTime   int64 // Slowest inference (nanoseconds)
	startTime time.Time
}

// NewInferenceMetrics registers the inference collectors on reg.
func NewInferenceMetrics(reg prometheus.Registerer) *InferenceMetrics {
	factory := promauto.With(reg)
	return &InferenceMetrics{
		computations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "computations_total",
			Help:      "Inferences by result",
		}, []string{"result"}),
		latency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compute_duration_seconds",
			Help:      "Time spent in a single inference",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}),
		ruleStrength: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rule_firing_strength",
			Help:      "Firing strength per rule",
			Buckets:   []float64{0, 0.1, 0.25, 0.5, 0.75, 0.9, 1},
		}, []string{"rule"}),
		output: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_output",
			Help:      "Most recent crisp output per consequent",
		}, []string{"variable"}),
		startTime: time.Now(),
	}
}

// ObserveInference records one finished inference.
func (m *InferenceMetrics) ObserveInference(ic *mamdani.InferenceContext, elapsed time.Duration, err error) {
	m.computations.WithLabelValues(Result(err)).Inc()
	m.latency.Observe(elapsed.Seconds())

	ns := elapsed.Nanoseconds()
	atomic.AddInt64(&m.total, 1)
	atomic.AddInt64(&m.totalTime, ns)
	for {
		current := atomic.LoadInt64(&m.maxTime)
		if ns <= current || atomic.CompareAndSwapInt64(&m.maxTime, current, ns) {
			break
		}
	}
	if err != nil {
		atomic.AddInt64(&m.failures, 1)
	}

	if ic == nil {
		return
	}
	for _, f := range ic.Firings {
		m.ruleStrength.WithLabelValues(f.Rule).Observe(f.Strength)
	}
	if err == nil {
		for name, v := range ic.Outputs {
			m.output.WithLabelValues(string(name)).Set(v)
		}
	}
}

// InferenceStats summarises inferences since the collector was created.
type InferenceStats struct {
	Total       int64     `json:"total"`
	Failures    int64     `json:"failures"`
	FailureRate float64   `json:"failure_rate"` // Percentage
	Rate        float64   `json:"rate"`         // Per second
	AvgTime     int64     `json:"avg_time"`     // Nanoseconds
	MaxTime     int64     `json:"max_time"`     // Nanoseconds
	Timestamp   time.Time `json:"timestamp"`
}

// Stats returns the current summary.
func (m *InferenceMetrics) Stats() InferenceStats {
	total := atomic.LoadInt64(&m.total)
	failures := atomic.LoadInt64(&m.failures)

	stats := InferenceStats{
		Total:     total,
		Failures:  failures,
		MaxTime:   atomic.LoadInt64(&m.maxTime),
		Timestamp: time.Now(),
	}
	if total > 0 {
		stats.FailureRate = float64(failures) / float64(total) * 100
		stats.AvgTime = atomic.LoadInt64(&m.totalTime) / total
		if uptime := time.Since(m.startTime); uptime > 0 {
			stats.Rate = float64(total) / uptime.Seconds()
		}
	}
	return stats
}
