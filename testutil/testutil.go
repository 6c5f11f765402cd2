// Package testutil provides scripted collaborators for exercising the
// agent loop without network or process I/O.
package testutil

import (
	"context"
	"sync"

	"github.com/BaSui01/scriptflow/executor"
	"github.com/BaSui01/scriptflow/llm"
	"github.com/BaSui01/scriptflow/types"
)

// ScriptedProvider replays canned replies in order and records every
// request it receives. When the replies run out the last one repeats.
type ScriptedProvider struct {
	// Replies are returned one per Chat call, in order.
	Replies []string
	// Usage is reported on every response.
	Usage types.TokenUsage
	// Err, when set, fails every Chat call.
	Err error

	mu       sync.Mutex
	requests []*llm.ChatRequest
}

func (p *ScriptedProvider) Name() string { return "scripted" }

// Chat records the request and returns the next scripted reply.
func (p *ScriptedProvider) Chat(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.requests = append(p.requests, req)
	if p.Err != nil {
		return nil, p.Err
	}

	idx := len(p.requests) - 1
	if idx >= len(p.Replies) {
		idx = len(p.Replies) - 1
	}
	content := ""
	if idx >= 0 {
		content = p.Replies[idx]
	}
	return &llm.ChatResponse{Content: content, Usage: p.Usage}, nil
}

func (p *ScriptedProvider) HealthCheck(context.Context) bool { return true }

// Calls returns the number of Chat calls so far.
func (p *ScriptedProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// Request returns the i-th recorded chat request.
func (p *ScriptedProvider) Request(i int) *llm.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests[i]
}

// RecordingBackend wraps an execution backend and records every request
// and session termination passing through it.
type RecordingBackend struct {
	inner executor.Backend

	mu         sync.Mutex
	requests   []executor.Request
	terminated []string
}

// NewRecordingBackend wraps inner.
func NewRecordingBackend(inner executor.Backend) *RecordingBackend {
	return &RecordingBackend{inner: inner}
}

func (b *RecordingBackend) Name() string { return b.inner.Name() }

// Execute records the request and delegates to the wrapped backend.
func (b *RecordingBackend) Execute(ctx context.Context, req *executor.Request) (*executor.Result, error) {
	if req != nil {
		b.mu.Lock()
		b.requests = append(b.requests, *req)
		b.mu.Unlock()
	}
	return b.inner.Execute(ctx, req)
}

func (b *RecordingBackend) HealthCheck(ctx context.Context) bool {
	return b.inner.HealthCheck(ctx)
}

// TerminateSession records the session id and delegates.
func (b *RecordingBackend) TerminateSession(ctx context.Context, sessionID string) {
	b.mu.Lock()
	b.terminated = append(b.terminated, sessionID)
	b.mu.Unlock()
	b.inner.TerminateSession(ctx, sessionID)
}

// Requests returns a copy of the recorded execution requests.
func (b *RecordingBackend) Requests() []executor.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]executor.Request, len(b.requests))
	copy(out, b.requests)
	return out
}

// Terminated returns the session ids passed to TerminateSession.
func (b *RecordingBackend) Terminated() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.terminated))
	copy(out, b.terminated)
	return out
}
