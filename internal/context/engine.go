// internal/context/engine.go
package context

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/user/toolchat/pkg/llm"
)

// perTurnOverhead approximates the role and framing tokens each turn costs.
const perTurnOverhead = 4

// Budget estimates how much of the model's context window a conversation
// occupies. The estimate uses an OpenAI tokenizer for every model, so it is
// a guide, not an exact count. Without a tokenizer it falls back to a
// character heuristic.
type Budget struct {
	tokenizer    *tiktoken.Tiktoken
	tokenizerErr error
	maxTokens    int
	reserve      int
	base         int
}

// Tokenizer loaders, replaced in tests. tiktoken fetches encodings over the
// network on first use.
var (
	encodingForModel = tiktoken.EncodingForModel
	getEncoding      = tiktoken.GetEncoding
)

// New creates a budget for the specified context window.
// model is used to select the appropriate tokenizer (e.g. "gpt-4").
// maxTokens is the model's context window size.
// reserve is the number of tokens to reserve for the model's response.
// If no tokenizer can be loaded the budget estimates from character counts;
// TokenizerErr reports why.
func New(model string, maxTokens, reserve int) *Budget {
	b := &Budget{maxTokens: maxTokens, reserve: reserve}
	enc, err := encodingForModel(model)
	if err != nil {
		// Fallback to cl100k_base for unknown models
		enc, err = getEncoding("cl100k_base")
	}
	if err != nil {
		b.tokenizerErr = fmt.Errorf("get tokenizer: %w", err)
		return b
	}
	b.tokenizer = enc
	return b
}

// TokenizerErr is non-nil when the budget uses the character heuristic.
func (b *Budget) TokenizerErr() error {
	return b.tokenizerErr
}

// WithSystemPrompt returns a copy of the budget that counts the system
// prompt on every estimate.
func (b *Budget) WithSystemPrompt(prompt string) *Budget {
	cp := *b
	cp.base = 0
	if prompt != "" {
		cp.base = cp.countTokens(prompt) + perTurnOverhead
	}
	return &cp
}

// countTokens returns the token count for a string.
func (b *Budget) countTokens(text string) int {
	if b.tokenizer == nil {
		return estimateTokens(text)
	}
	return len(b.tokenizer.Encode(text, nil, nil))
}

// estimateTokens approximates a count as max(runes/4, words).
func estimateTokens(text string) int {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0
	}
	estimate := utf8.RuneCountInString(trimmed) / 4
	if words := len(strings.Fields(trimmed)); estimate < words {
		estimate = words
	}
	return max(estimate, 1)
}

// Count estimates the prompt size of one inference call.
func (b *Budget) Count(history []llm.Turn, tools []llm.ToolSpec) int {
	total := b.base
	for _, t := range tools {
		total += b.countTokens(t.Name) + b.countTokens(t.Description) + b.countTokens(string(t.InputSchema))
	}
	for _, turn := range history {
		total += perTurnOverhead
		for _, block := range turn.Content {
			switch block := block.(type) {
			case llm.TextBlock:
				total += b.countTokens(block.Text)
			case llm.ToolUseBlock:
				total += b.countTokens(block.Name) + b.countTokens(string(block.Input))
			case llm.ToolResultBlock:
				total += b.countTokens(block.Content)
			}
		}
	}
	return total
}

// Limit is the number of input tokens available once the response reserve
// is set aside.
func (b *Budget) Limit() int {
	return b.maxTokens - b.reserve
}

// Exceeded reports whether an estimate from Count no longer fits.
func (b *Budget) Exceeded(tokens int) bool {
	return b.maxTokens > 0 && tokens > b.Limit()
}
