package tokenizer

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/BaSui01/scriptflow/types"
)

// modelEncodings maps model names to their tiktoken encodings.
var modelEncodings = map[string]string{
	"gpt-4o":        "o200k_base",
	"gpt-4o-mini":   "o200k_base",
	"gpt-4-turbo":   "cl100k_base",
	"gpt-4":         "cl100k_base",
	"gpt-3.5-turbo": "cl100k_base",
}

const defaultEncoding = "cl100k_base"

// Tiktoken counts tokens with the model's actual BPE encoding. The
// encoding is initialized lazily (first use may load encoding data); when
// initialization fails, counting silently falls back to estimation so the
// loop's budgeting never breaks.
type Tiktoken struct {
	encoding string
	fallback *Estimate

	once    sync.Once
	enc     *tiktoken.Tiktoken
	initErr error
}

// NewTiktoken creates a tiktoken-backed tokenizer for the given model.
func NewTiktoken(model string) *Tiktoken {
	return &Tiktoken{
		encoding: encodingForModel(model),
		fallback: NewEstimate(),
	}
}

func encodingForModel(model string) string {
	if enc, ok := modelEncodings[model]; ok {
		return enc
	}
	// Longest prefix wins: gpt-4o-* must not resolve through gpt-4.
	best, bestLen := defaultEncoding, 0
	for prefix, enc := range modelEncodings {
		if len(model) >= len(prefix) && model[:len(prefix)] == prefix && len(prefix) > bestLen {
			best, bestLen = enc, len(prefix)
		}
	}
	return best
}

func (t *Tiktoken) init() bool {
	t.once.Do(func() {
		t.enc, t.initErr = tiktoken.GetEncoding(t.encoding)
	})
	return t.initErr == nil
}

// CountTokens counts tokens in text.
func (t *Tiktoken) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	if !t.init() {
		return t.fallback.CountTokens(text)
	}
	return len(t.enc.Encode(text, nil, nil))
}

// CountMessageTokens counts tokens in a message.
func (t *Tiktoken) CountMessageTokens(msg types.Message) int {
	return 4 + t.CountTokens(msg.Content) + t.CountTokens(string(msg.Role))
}

// CountMessagesTokens counts tokens in a message slice.
func (t *Tiktoken) CountMessagesTokens(msgs []types.Message) int {
	total := 0
	for _, msg := range msgs {
		total += t.CountMessageTokens(msg)
	}
	return total
}
