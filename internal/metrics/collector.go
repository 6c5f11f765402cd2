package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/BaSui01/scriptflow/types"
)

// Collector owns the prometheus instruments for the agent loop and the
// execution backends. A nil *Collector is valid and drops all
// observations, so wiring metrics stays optional.
type Collector struct {
	turnsTotal         prometheus.Counter
	turnIterations     prometheus.Histogram
	executionsTotal    *prometheus.CounterVec
	executionDuration  *prometheus.HistogramVec
	validationFailures prometheus.Counter
	tokensUsed         *prometheus.CounterVec
}

// NewCollector creates a collector registered against reg. When reg is
// nil a private registry is used so nothing leaks into the default
// global one.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Collector{
		turnsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of processed conversation turns",
		}),
		turnIterations: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_iterations",
			Help:      "Model-call iterations consumed per turn",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}),
		executionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Total script executions by backend and status",
		}, []string{"backend", "status"}),
		executionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_duration_seconds",
			Help:      "Script execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend"}),
		validationFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_failures_total",
			Help:      "Scripts rejected by the validator before any backend I/O",
		}),
		tokensUsed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_used_total",
			Help:      "Model tokens consumed by kind",
		}, []string{"kind"}),
	}
}

// ObserveExecution records one dispatched execution.
func (c *Collector) ObserveExecution(backend string, success bool, validationFailed bool, duration time.Duration) {
	if c == nil {
		return
	}
	status := "success"
	switch {
	case validationFailed:
		status = "validation_failed"
		c.validationFailures.Inc()
	case !success:
		status = "failure"
	}
	c.executionsTotal.WithLabelValues(backend, status).Inc()
	c.executionDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// ObserveTurn records one completed ProcessMessage call.
func (c *Collector) ObserveTurn(iterations int, usage types.TokenUsage) {
	if c == nil {
		return
	}
	c.turnsTotal.Inc()
	c.turnIterations.Observe(float64(iterations))
	c.tokensUsed.WithLabelValues("prompt").Add(float64(usage.PromptTokens))
	c.tokensUsed.WithLabelValues("completion").Add(float64(usage.CompletionTokens))
}
