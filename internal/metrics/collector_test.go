package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/BaSui01/scriptflow/types"
)

func TestCollector_ObserveExecution(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("scriptflow", reg)

	c.ObserveExecution("mock", true, false, 10*time.Millisecond)
	c.ObserveExecution("mock", false, false, 10*time.Millisecond)
	c.ObserveExecution("remote", false, true, 0)

	assert.Equal(t, float64(1), testutil.ToFloat64(c.executionsTotal.WithLabelValues("mock", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.executionsTotal.WithLabelValues("mock", "failure")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.executionsTotal.WithLabelValues("remote", "validation_failed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.validationFailures))
}

func TestCollector_ObserveTurn(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("scriptflow", reg)

	c.ObserveTurn(3, types.TokenUsage{PromptTokens: 100, CompletionTokens: 40, TotalTokens: 140})
	c.ObserveTurn(1, types.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15})

	assert.Equal(t, float64(2), testutil.ToFloat64(c.turnsTotal))
	assert.Equal(t, float64(110), testutil.ToFloat64(c.tokensUsed.WithLabelValues("prompt")))
	assert.Equal(t, float64(45), testutil.ToFloat64(c.tokensUsed.WithLabelValues("completion")))
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveExecution("mock", true, false, time.Millisecond)
		c.ObserveTurn(1, types.TokenUsage{})
	})
}
