package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/scriptflow/internal/metrics"
	"github.com/BaSui01/scriptflow/validator"
)

// Kind selects the execution backend. The set is closed: exactly these
// three variants exist.
type Kind string

const (
	KindMock   Kind = "mock"
	KindLocal  Kind = "local"
	KindRemote Kind = "remote"
)

// Config configures backend construction.
type Config struct {
	// Kind picks the backend variant.
	Kind Kind `yaml:"kind"`
	// Endpoint is the base URL of the remote session pool.
	Endpoint string `yaml:"endpoint"`
	// Timeout bounds a single execution when the request carries none.
	Timeout time.Duration `yaml:"timeout"`
	// HealthTimeout bounds health-check probes.
	HealthTimeout time.Duration `yaml:"health_timeout"`
	// MaxOutputBytes caps captured output; excess is truncated.
	MaxOutputBytes int `yaml:"max_output_bytes"`
	// Interpreter and InterpreterArgs define the local interpreter
	// invocation; the script is appended as the final argument.
	Interpreter     string   `yaml:"interpreter"`
	InterpreterArgs []string `yaml:"interpreter_args"`
	// Validator bounds for the pre-execution safety gate.
	Validator validator.Config `yaml:"validator"`
}

// DefaultConfig returns conservative defaults with the mock backend
// selected, so a missing config never reaches a real execution surface.
func DefaultConfig() Config {
	return Config{
		Kind:            KindMock,
		Timeout:         30 * time.Second,
		HealthTimeout:   5 * time.Second,
		MaxOutputBytes:  64 * 1024,
		Interpreter:     "pwsh",
		InterpreterArgs: []string{"-NoProfile", "-NonInteractive", "-Command"},
		Validator:       validator.DefaultConfig(),
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.HealthTimeout <= 0 {
		c.HealthTimeout = def.HealthTimeout
	}
	if c.MaxOutputBytes <= 0 {
		c.MaxOutputBytes = def.MaxOutputBytes
	}
	if c.Interpreter == "" {
		c.Interpreter = def.Interpreter
		c.InterpreterArgs = def.InterpreterArgs
	}
	return c
}

// Request is a single execution request. SessionID correlates repeated
// calls within one conversational turn; a fresh one is generated when
// empty.
type Request struct {
	Script    string            `json:"script"`
	SessionID string            `json:"session_id,omitempty"`
	Timeout   time.Duration     `json:"timeout,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
}

// Result is the outcome of one execution request.
//
// Invariant: when Validation.Valid is false, Success is false and no
// backend I/O occurred.
type Result struct {
	Success        bool             `json:"success"`
	Output         string           `json:"output"`
	StructuredData any              `json:"structured_data,omitempty"`
	Error          string           `json:"error,omitempty"`
	Duration       time.Duration    `json:"duration"`
	SessionID      string           `json:"session_id"`
	Validation     validator.Result `json:"validation"`
}

// Backend is the shared execution contract. Runtime failures (transport,
// process, timeout, validation) are encoded in the returned Result, never
// raised as an error; the error return is reserved for nil requests.
type Backend interface {
	// Execute validates and runs one script.
	Execute(ctx context.Context, req *Request) (*Result, error)
	// HealthCheck reports whether the backend can accept executions.
	HealthCheck(ctx context.Context) bool
	// TerminateSession releases backend-side session state, best effort.
	TerminateSession(ctx context.Context, sessionID string)
	// Name identifies the backend variant.
	Name() string
}

// New constructs the configured backend. Unknown kinds are a
// configuration error.
func New(cfg Config, logger *zap.Logger, collector *metrics.Collector) (Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()

	switch cfg.Kind {
	case KindMock:
		return NewMockBackend(cfg, logger, collector), nil
	case KindLocal:
		return NewLocalBackend(cfg, logger, collector), nil
	case KindRemote:
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("remote backend requires an endpoint")
		}
		return NewRemoteBackend(cfg, logger, collector), nil
	default:
		return nil, fmt.Errorf("unknown backend kind %q", cfg.Kind)
	}
}

var errNilRequest = fmt.Errorf("execution request is nil")

// gate runs the validator and normalizes the session id. It returns a
// terminal failure Result when the script is rejected; callers must not
// perform any I/O in that case. On a valid script the verdict carries the
// sanitized script the backend must run.
func gate(v *validator.Validator, req *Request) (failed *Result, sessionID string, verdict validator.Result) {
	sessionID = req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	verdict = v.Validate(req.Script)
	if verdict.Valid {
		return nil, sessionID, verdict
	}
	return &Result{
		Success:    false,
		Error:      "validation failed: " + strings.Join(verdict.Errors, "; "),
		SessionID:  sessionID,
		Validation: verdict,
	}, sessionID, verdict
}

// truncate caps s at max bytes, appending a marker when anything was cut.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "\n... [output truncated]"
}

// parseStructured attempts to interpret s as JSON, returning nil when it
// is not.
func parseStructured(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var data any
	if err := json.Unmarshal([]byte(s), &data); err != nil {
		return nil
	}
	return data
}
