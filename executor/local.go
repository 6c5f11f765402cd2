package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/scriptflow/internal/metrics"
	"github.com/BaSui01/scriptflow/validator"
)

// LocalBackend runs each validated script as a fresh interpreter process
// with a hard timeout. It offers no isolation beyond the validator and is
// meant for trusted development environments.
type LocalBackend struct {
	cfg       Config
	validator *validator.Validator
	logger    *zap.Logger
	metrics   *metrics.Collector
}

// NewLocalBackend creates a local-process backend.
func NewLocalBackend(cfg Config, logger *zap.Logger, collector *metrics.Collector) *LocalBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalBackend{
		cfg:       cfg,
		validator: validator.New(cfg.Validator),
		logger:    logger.With(zap.String("backend", "local")),
		metrics:   collector,
	}
}

func (b *LocalBackend) Name() string { return string(KindLocal) }

// Execute validates the script, then spawns it as the final argument of
// the configured interpreter. On timeout the process is killed and the
// result reports whatever partial output was captured. Exit code zero
// maps to success; anything else to failure.
func (b *LocalBackend) Execute(ctx context.Context, req *Request) (*Result, error) {
	if req == nil {
		return nil, errNilRequest
	}
	failed, sessionID, verdict := gate(b.validator, req)
	if failed != nil {
		b.logger.Warn("script rejected, no process spawned",
			zap.String("session_id", sessionID),
			zap.Strings("errors", verdict.Errors))
		b.metrics.ObserveExecution(b.Name(), false, true, 0)
		return failed, nil
	}

	timeout := b.cfg.Timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append(append([]string{}, b.cfg.InterpreterArgs...), verdict.SanitizedScript)
	cmd := exec.CommandContext(ctx, b.cfg.Interpreter, args...)
	cmd.Env = os.Environ()
	for k, v := range req.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// A killed interpreter can leave grandchildren holding the output
	// pipes; WaitDelay keeps Wait from blocking on them forever.
	cmd.WaitDelay = time.Second

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	result := &Result{
		Duration:   duration,
		SessionID:  sessionID,
		Validation: verdict,
		Output:     truncate(stdout.String(), b.cfg.MaxOutputBytes),
	}
	result.StructuredData = parseStructured(stdout.String())

	switch {
	case ctx.Err() == context.DeadlineExceeded:
		result.Success = false
		result.Error = fmt.Sprintf("execution timed out after %s and the process was killed; partial output: %s",
			timeout, truncate(stdout.String()+stderr.String(), 1024))
	case runErr == nil:
		result.Success = true
	default:
		result.Success = false
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			if msg := truncate(stderr.String(), b.cfg.MaxOutputBytes); msg != "" {
				result.Error = msg
			} else {
				result.Error = fmt.Sprintf("process exited with code %d", exitErr.ExitCode())
			}
		} else {
			result.Error = fmt.Sprintf("failed to start interpreter %q: %v", b.cfg.Interpreter, runErr)
		}
	}

	b.metrics.ObserveExecution(b.Name(), result.Success, false, duration)
	b.logger.Debug("local execution finished",
		zap.String("session_id", sessionID),
		zap.Bool("success", result.Success),
		zap.Duration("duration", duration))
	return result, nil
}

// HealthCheck runs a trivial interpreter invocation with a short timeout.
func (b *LocalBackend) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.HealthTimeout)
	defer cancel()

	args := append(append([]string{}, b.cfg.InterpreterArgs...), "exit 0")
	return exec.CommandContext(ctx, b.cfg.Interpreter, args...).Run() == nil
}

// TerminateSession is a no-op: every execution is a fresh process with no
// backend-side session state.
func (b *LocalBackend) TerminateSession(ctx context.Context, sessionID string) {}
