package ai

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter counts prompt tokens with a tiktoken encoding. Used for the
// memory manager's context budget and for providers that do not report
// usage. A nil counter is valid and counts nothing.
type TokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTokenCounter builds a counter for the given encoding name
// (e.g. "cl100k_base").
func NewTokenCounter(encoding string) (*TokenCounter, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding %q: %w", encoding, err)
	}
	return &TokenCounter{enc: enc}, nil
}

// Count returns the number of tokens in the text. Falls back to a rough
// 4-chars-per-token estimate when no encoding is loaded.
func (t *TokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	if t == nil || t.enc == nil {
		return len(text)/4 + 1
	}
	return len(t.enc.Encode(text, nil, nil))
}
