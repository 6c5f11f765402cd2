// Package conversation stores per-conversation message history.
//
// The agent loop assumes at most one in-flight turn per conversation id;
// stores lock only their own internal structures and provide no per-id
// mutual exclusion. Concurrent turns against the same id can interleave
// message ordering — serializing them is the caller's responsibility.
package conversation

import (
	"context"
	"sync"

	"github.com/BaSui01/scriptflow/tokenizer"
	"github.com/BaSui01/scriptflow/types"
)

// Store is the conversation-history collaborator contract.
type Store interface {
	// Get returns the full ordered history for a conversation.
	Get(ctx context.Context, conversationID string) ([]types.Message, error)
	// AddMessage appends one message to a conversation.
	AddMessage(ctx context.Context, conversationID string, msg types.Message) error
	// MessagesForContext returns the most recent messages fitting the
	// token budget, scanning backward from the newest, in chronological
	// order.
	MessagesForContext(ctx context.Context, conversationID string, maxTokens int) ([]types.Message, error)
	// Clear removes a conversation's history.
	Clear(ctx context.Context, conversationID string) error
}

// trimToBudget walks backward from the newest message, keeping messages
// until the budget is exhausted. Shared by all store implementations.
func trimToBudget(msgs []types.Message, maxTokens int, tok tokenizer.Tokenizer) []types.Message {
	if maxTokens <= 0 {
		return nil
	}
	remaining := maxTokens
	cut := len(msgs)
	for i := len(msgs) - 1; i >= 0; i-- {
		cost := msgs[i].Tokens
		if cost == 0 {
			cost = tok.CountMessageTokens(msgs[i])
		}
		if cost > remaining {
			break
		}
		remaining -= cost
		cut = i
	}
	return msgs[cut:]
}

// MemoryStore keeps conversation history in process memory. It is the
// default store and the one tests use.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string][]types.Message
	tok           tokenizer.Tokenizer
}

// NewMemoryStore creates an in-memory store. A nil tokenizer falls back
// to estimation.
func NewMemoryStore(tok tokenizer.Tokenizer) *MemoryStore {
	if tok == nil {
		tok = tokenizer.NewEstimate()
	}
	return &MemoryStore{
		conversations: make(map[string][]types.Message),
		tok:           tok,
	}
}

// Get returns a copy of the conversation history.
func (s *MemoryStore) Get(ctx context.Context, conversationID string) ([]types.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.conversations[conversationID]
	out := make([]types.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// AddMessage appends one message.
func (s *MemoryStore) AddMessage(ctx context.Context, conversationID string, msg types.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[conversationID] = append(s.conversations[conversationID], msg)
	return nil
}

// MessagesForContext returns the newest messages fitting the budget.
func (s *MemoryStore) MessagesForContext(ctx context.Context, conversationID string, maxTokens int) ([]types.Message, error) {
	msgs, err := s.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return trimToBudget(msgs, maxTokens, s.tok), nil
}

// Clear removes the conversation.
func (s *MemoryStore) Clear(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, conversationID)
	return nil
}
