// Package tokenizer counts model-context tokens for prompt budgeting.
package tokenizer

import (
	"github.com/BaSui01/scriptflow/types"
)

// Tokenizer counts tokens. Counting never fails: implementations that can
// error internally fall back to estimation.
type Tokenizer interface {
	// CountTokens counts tokens in a text string.
	CountTokens(text string) int
	// CountMessageTokens counts tokens in a single message, including the
	// per-message framing overhead.
	CountMessageTokens(msg types.Message) int
	// CountMessagesTokens counts total tokens in a message slice.
	CountMessagesTokens(msgs []types.Message) int
}

// Estimate provides a character-based token estimation: roughly four
// characters per token for Latin text, denser for CJK.
type Estimate struct {
	msgOverhead int
}

// NewEstimate creates an estimating tokenizer.
func NewEstimate() *Estimate {
	return &Estimate{msgOverhead: 4}
}

// CountTokens estimates tokens in text.
func (t *Estimate) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	var cjk, other int
	for _, r := range text {
		if r >= 0x4E00 && r <= 0x9FA5 {
			cjk++
		} else {
			other++
		}
	}
	tokens := float64(cjk)/1.5 + float64(other)/4.0
	if tokens < 1 {
		return 1
	}
	return int(tokens)
}

// CountMessageTokens estimates tokens in a message.
func (t *Estimate) CountMessageTokens(msg types.Message) int {
	return t.msgOverhead + t.CountTokens(msg.Content)
}

// CountMessagesTokens estimates tokens in a message slice.
func (t *Estimate) CountMessagesTokens(msgs []types.Message) int {
	total := 0
	for _, msg := range msgs {
		total += t.CountMessageTokens(msg)
	}
	return total
}
