package tokenizer

import (
	"fmt"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Counter counts and truncates text in tokenizer units for one model family.
// Counts are deterministic for identical input.
type Counter struct {
	enc *tiktoken.Tiktoken
}

// New loads the named tiktoken encoding (e.g. cl100k_base).
func New(encoding string) (*Counter, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer %s: %w", encoding, err)
	}
	return &Counter{enc: enc}, nil
}

// Count returns the number of tokens in text.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.enc.Encode(text, nil, nil))
}

// Truncate cuts text to at most maxTokens tokens, returning the truncated
// text and its token count.
func (c *Counter) Truncate(text string, maxTokens int) (string, int) {
	if text == "" || maxTokens <= 0 {
		return "", 0
	}
	tokens := c.enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text, len(tokens)
	}
	return c.enc.Decode(tokens[:maxTokens]), maxTokens
}

// Heuristic approximates token counts as ceil(bytes/4). It is the fallback
// when an encoding cannot be loaded (tiktoken fetches encoding data on first
// use) so the daemon can still start offline. It deliberately overcounts
// short texts rather than undercounting, keeping the budget ceiling safe.
type Heuristic struct{}

// Count approximates the token count of text.
func (Heuristic) Count(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// Truncate cuts text at the byte position corresponding to maxTokens,
// backing off to the nearest rune boundary so the result stays valid UTF-8.
func (Heuristic) Truncate(text string, maxTokens int) (string, int) {
	if text == "" || maxTokens <= 0 {
		return "", 0
	}
	maxBytes := maxTokens * 4
	if len(text) <= maxBytes {
		return text, Heuristic{}.Count(text)
	}
	for maxBytes > 0 && !utf8.RuneStart(text[maxBytes]) {
		maxBytes--
	}
	cut := text[:maxBytes]
	return cut, Heuristic{}.Count(cut)
}
