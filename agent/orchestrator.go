// Package agent implements the bounded conversational control loop: each
// user message triggers up to MaxIterations model calls, with any fenced
// powershell block in a reply dispatched through the execution backend
// and its outcome fed back into the conversation.
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/scriptflow/conversation"
	"github.com/BaSui01/scriptflow/executor"
	"github.com/BaSui01/scriptflow/internal/metrics"
	"github.com/BaSui01/scriptflow/llm"
	"github.com/BaSui01/scriptflow/tokenizer"
	"github.com/BaSui01/scriptflow/types"
)

// Config bounds one conversation turn.
type Config struct {
	// MaxIterations caps model calls per turn.
	MaxIterations int `yaml:"max_iterations"`
	// ContextBudget caps the tokens sent to the model, system prompt
	// included; older history is dropped first.
	ContextBudget int `yaml:"context_budget"`
	// ExecTimeout bounds each script execution.
	ExecTimeout time.Duration `yaml:"exec_timeout"`
	// Model overrides the provider default when non-empty.
	Model string `yaml:"model"`
}

// DefaultConfig returns the loop defaults.
func DefaultConfig() Config {
	return Config{
		MaxIterations: 10,
		ContextBudget: 8000,
		ExecTimeout:   30 * time.Second,
	}
}

// TurnResult is the outcome of one processed user message.
type TurnResult struct {
	// Response is the final assistant answer shown to the user.
	Response string `json:"response"`
	// Executions lists every script execution of the turn, in order,
	// including rejected and failed ones.
	Executions []executor.Result `json:"executions,omitempty"`
	// Usage accumulates token usage across all model calls of the turn.
	Usage types.TokenUsage `json:"usage"`
}

// Orchestrator drives the turn loop. Safe for concurrent use across
// distinct conversation ids; concurrent turns on the same id interleave
// their messages.
type Orchestrator struct {
	cfg      Config
	provider llm.Provider
	store    conversation.Store
	backend  executor.Backend
	tok      tokenizer.Tokenizer
	metrics  *metrics.Collector
	logger   *zap.Logger
}

// New creates an orchestrator. Zero config fields fall back to defaults;
// tok, collector, and logger may be nil.
func New(cfg Config, provider llm.Provider, store conversation.Store, backend executor.Backend, tok tokenizer.Tokenizer, collector *metrics.Collector, logger *zap.Logger) *Orchestrator {
	def := DefaultConfig()
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = def.MaxIterations
	}
	if cfg.ContextBudget <= 0 {
		cfg.ContextBudget = def.ContextBudget
	}
	if cfg.ExecTimeout <= 0 {
		cfg.ExecTimeout = def.ExecTimeout
	}
	if tok == nil {
		tok = tokenizer.NewEstimate()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:      cfg,
		provider: provider,
		store:    store,
		backend:  backend,
		tok:      tok,
		metrics:  collector,
		logger:   logger.With(zap.String("component", "agent")),
	}
}

// ProcessMessage runs one full turn for userMessage in the given
// conversation. Validation, transport, and process failures are recovered
// in-loop by feeding them back to the model; only model call failures
// abort the turn, leaving the history appended so far intact.
func (o *Orchestrator) ProcessMessage(ctx context.Context, conversationID, userMessage string) (*TurnResult, error) {
	start := time.Now()

	if err := o.store.AddMessage(ctx, conversationID, types.NewUserMessage(userMessage)); err != nil {
		return nil, fmt.Errorf("append user message: %w", err)
	}

	// One backend session per turn, so repeated executions share state.
	sessionID := uuid.NewString()
	defer o.backend.TerminateSession(context.WithoutCancel(ctx), sessionID)

	prompt := buildSystemPrompt()
	historyBudget := o.cfg.ContextBudget - o.tok.CountMessageTokens(types.NewSystemMessage(prompt))
	if historyBudget < 0 {
		historyBudget = 0
	}

	var usage types.TokenUsage
	var executions []executor.Result

	for iteration := 1; iteration <= o.cfg.MaxIterations; iteration++ {
		history, err := o.store.MessagesForContext(ctx, conversationID, historyBudget)
		if err != nil {
			return nil, fmt.Errorf("load conversation %s: %w", conversationID, err)
		}
		messages := append([]types.Message{types.NewSystemMessage(prompt)}, history...)

		resp, err := o.provider.Chat(ctx, &llm.ChatRequest{
			Model:    o.cfg.Model,
			Messages: messages,
		})
		if err != nil {
			o.logger.Error("model call failed",
				zap.String("conversation_id", conversationID),
				zap.Int("iteration", iteration),
				zap.Error(err))
			if types.GetErrorCode(err) == types.ErrModel {
				return nil, err
			}
			return nil, types.NewError(types.ErrModel, "model call failed").WithCause(err)
		}
		usage.Add(resp.Usage)

		if err := o.store.AddMessage(ctx, conversationID, types.NewAssistantMessage(resp.Content)); err != nil {
			return nil, fmt.Errorf("append assistant message: %w", err)
		}

		script, found := extractScript(resp.Content)
		if !found {
			o.finishTurn(conversationID, iteration, len(executions), usage, start)
			return &TurnResult{Response: resp.Content, Executions: executions, Usage: usage}, nil
		}

		result, err := o.backend.Execute(ctx, &executor.Request{
			Script:    script,
			SessionID: sessionID,
			Timeout:   o.cfg.ExecTimeout,
		})
		if err != nil {
			result = &executor.Result{Success: false, Error: err.Error(), SessionID: sessionID}
		}
		executions = append(executions, *result)

		o.logger.Debug("script executed",
			zap.String("conversation_id", conversationID),
			zap.Int("iteration", iteration),
			zap.Bool("success", result.Success),
			zap.Duration("duration", result.Duration))

		if err := o.store.AddMessage(ctx, conversationID, types.NewSystemMessage(formatExecutionMessage(result))); err != nil {
			return nil, fmt.Errorf("append execution outcome: %w", err)
		}
	}

	// The model was still emitting scripts when the cap ran out. Close
	// the turn with the last outcome so the user sees what happened.
	response := fmt.Sprintf("iteration limit reached after %d script executions.", len(executions))
	if len(executions) > 0 {
		response += "\n" + formatExecutionMessage(&executions[len(executions)-1])
	}
	if err := o.store.AddMessage(ctx, conversationID, types.NewAssistantMessage(response)); err != nil {
		return nil, fmt.Errorf("append cap response: %w", err)
	}

	o.finishTurn(conversationID, o.cfg.MaxIterations, len(executions), usage, start)
	return &TurnResult{Response: response, Executions: executions, Usage: usage}, nil
}

func (o *Orchestrator) finishTurn(conversationID string, iterations, executions int, usage types.TokenUsage, start time.Time) {
	o.metrics.ObserveTurn(iterations, usage)
	o.logger.Info("turn completed",
		zap.String("conversation_id", conversationID),
		zap.Int("iterations", iterations),
		zap.Int("executions", executions),
		zap.Int("total_tokens", usage.TotalTokens),
		zap.Duration("duration", time.Since(start)))
}

// formatExecutionMessage renders one execution outcome as the synthetic
// conversation message the model sees on the next iteration.
func formatExecutionMessage(res *executor.Result) string {
	if res.Success {
		out := res.Output
		if strings.TrimSpace(out) == "" {
			out = "(no output)"
		}
		return "Execution result:\n" + out
	}
	msg := "Execution failed: " + res.Error
	if res.Output != "" {
		msg += "\nPartial output:\n" + res.Output
	}
	return msg
}
