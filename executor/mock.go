package executor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/scriptflow/internal/metrics"
	"github.com/BaSui01/scriptflow/validator"
)

// MockBackend answers every valid script with a deterministic success
// result and performs no real execution. It exists for environments
// without a live sandbox and for deterministic testing.
type MockBackend struct {
	validator *validator.Validator
	logger    *zap.Logger
	metrics   *metrics.Collector
}

// NewMockBackend creates a mock backend.
func NewMockBackend(cfg Config, logger *zap.Logger, collector *metrics.Collector) *MockBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MockBackend{
		validator: validator.New(cfg.Validator),
		logger:    logger.With(zap.String("backend", "mock")),
		metrics:   collector,
	}
}

func (b *MockBackend) Name() string { return string(KindMock) }

// Execute validates the script and fabricates a success result describing
// what would have run.
func (b *MockBackend) Execute(ctx context.Context, req *Request) (*Result, error) {
	if req == nil {
		return nil, errNilRequest
	}
	failed, sessionID, verdict := gate(b.validator, req)
	if failed != nil {
		b.logger.Warn("script rejected",
			zap.String("session_id", sessionID),
			zap.Strings("errors", verdict.Errors))
		b.metrics.ObserveExecution(b.Name(), false, true, 0)
		return failed, nil
	}

	result := &Result{
		Success:    true,
		Output:     fmt.Sprintf("[mock] script accepted (%d bytes, %d commands), no execution performed:\n%s", len(verdict.SanitizedScript), len(verdict.DetectedCommands), verdict.SanitizedScript),
		SessionID:  sessionID,
		Validation: verdict,
	}
	b.metrics.ObserveExecution(b.Name(), true, false, 0)
	return result, nil
}

// HealthCheck always succeeds; there is nothing to probe.
func (b *MockBackend) HealthCheck(ctx context.Context) bool { return true }

// TerminateSession is a no-op; the mock holds no session state.
func (b *MockBackend) TerminateSession(ctx context.Context, sessionID string) {}
