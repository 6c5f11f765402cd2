package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/scriptflow/internal/metrics"
	"github.com/BaSui01/scriptflow/validator"
)

// sessionHeader carries the session-correlation id to the pool.
const sessionHeader = "X-Session-Id"

// RemoteBackend executes scripts against a sandboxed session-pool service
// over HTTP. One validated script means exactly one timeout-bounded POST;
// there are no retries at this layer.
type RemoteBackend struct {
	cfg       Config
	client    *http.Client
	validator *validator.Validator
	logger    *zap.Logger
	metrics   *metrics.Collector
}

// NewRemoteBackend creates a remote session-pool backend.
func NewRemoteBackend(cfg Config, logger *zap.Logger, collector *metrics.Collector) *RemoteBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RemoteBackend{
		cfg: cfg,
		// Per-call deadlines come from the request context; the client
		// itself carries no timeout so health and execute can differ.
		client:    &http.Client{},
		validator: validator.New(cfg.Validator),
		logger:    logger.With(zap.String("backend", "remote")),
		metrics:   collector,
	}
}

func (b *RemoteBackend) Name() string { return string(KindRemote) }

type remoteRequestProperties struct {
	CodeInputType    string `json:"codeInputType"`
	ExecutionType    string `json:"executionType"`
	Code             string `json:"code"`
	TimeoutInSeconds int    `json:"timeoutInSeconds"`
}

type remoteRequest struct {
	Properties remoteRequestProperties `json:"properties"`
}

type remoteResponse struct {
	Properties struct {
		Stdout          string `json:"stdout"`
		Stderr          string `json:"stderr"`
		ExecutionResult string `json:"executionResult"`
	} `json:"properties"`
}

// Execute validates the script, then issues a single POST to the pool.
// Transport failures, timeouts, and non-2xx statuses are all encoded in
// the Result; nothing escapes this boundary as an error.
func (b *RemoteBackend) Execute(ctx context.Context, req *Request) (*Result, error) {
	if req == nil {
		return nil, errNilRequest
	}
	failed, sessionID, verdict := gate(b.validator, req)
	if failed != nil {
		b.logger.Warn("script rejected, no network call made",
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

	start := time.Now()
	result := b.post(ctx, verdict.SanitizedScript, sessionID, timeout)
	result.Duration = time.Since(start)
	result.SessionID = sessionID
	result.Validation = verdict

	b.metrics.ObserveExecution(b.Name(), result.Success, false, result.Duration)
	b.logger.Debug("remote execution finished",
		zap.String("session_id", sessionID),
		zap.Bool("success", result.Success),
		zap.Duration("duration", result.Duration))
	return result, nil
}

func (b *RemoteBackend) post(ctx context.Context, script, sessionID string, timeout time.Duration) *Result {
	body, err := json.Marshal(remoteRequest{Properties: remoteRequestProperties{
		CodeInputType:    "inline",
		ExecutionType:    "synchronous",
		Code:             script,
		TimeoutInSeconds: int(timeout.Seconds()),
	}})
	if err != nil {
		return &Result{Error: fmt.Sprintf("encode execution request: %v", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint("/code/execute"), bytes.NewReader(body))
	if err != nil {
		return &Result{Error: fmt.Sprintf("build execution request: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(sessionHeader, sessionID)

	resp, err := b.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return &Result{Error: fmt.Sprintf("remote execution timed out after %s", timeout)}
		}
		return &Result{Error: fmt.Sprintf("remote execution transport failure: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &Result{Error: fmt.Sprintf("remote execution failed: status=%d body=%s", resp.StatusCode, truncate(string(raw), 512))}
	}

	// Decode straight off the body. The output cap applies to the parsed
	// fields below; capping the raw bytes here would cut large documents
	// mid-JSON and fail the decode.
	var parsed remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return &Result{Error: fmt.Sprintf("decode execution response: %v", err)}
	}

	stdout := parsed.Properties.Stdout
	stderr := parsed.Properties.Stderr
	execResult := parsed.Properties.ExecutionResult

	output := stdout
	if execResult != "" {
		if output != "" {
			output += "\n"
		}
		output += execResult
	}
	output = truncate(output, b.cfg.MaxOutputBytes)

	structured := parseStructured(execResult)
	if structured == nil {
		structured = parseStructured(stdout)
	}

	// An empty stderr is the pool's success signal.
	if stderr != "" {
		return &Result{
			Success:        false,
			Output:         output,
			StructuredData: structured,
			Error:          truncate(stderr, b.cfg.MaxOutputBytes),
		}
	}
	return &Result{
		Success:        true,
		Output:         output,
		StructuredData: structured,
	}
}

// HealthCheck issues a lightweight GET against the session pool.
func (b *RemoteBackend) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.HealthTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, b.endpoint("/sessions"), nil)
	if err != nil {
		return false
	}
	resp, err := b.client.Do(httpReq)
	if err != nil {
		b.logger.Debug("health check failed", zap.Error(err))
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}

// TerminateSession issues a best-effort DELETE for the session. Failures
// are logged, never escalated.
func (b *RemoteBackend) TerminateSession(ctx context.Context, sessionID string) {
	if sessionID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, b.cfg.HealthTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, b.endpoint("/sessions/"+sessionID), nil)
	if err != nil {
		b.logger.Warn("terminate session: build request failed", zap.Error(err))
		return
	}
	resp, err := b.client.Do(httpReq)
	if err != nil {
		b.logger.Warn("terminate session failed",
			zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b.logger.Warn("terminate session returned non-success status",
			zap.String("session_id", sessionID), zap.Int("status", resp.StatusCode))
	}
}

func (b *RemoteBackend) endpoint(path string) string {
	return strings.TrimRight(b.cfg.Endpoint, "/") + path
}
