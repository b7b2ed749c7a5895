package metrics

import (
	"fmt"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// TokenCounter estimates token counts when a provider omits usage.
type TokenCounter struct {
	codec tokenizer.Codec
}

// NewTokenCounter returns a counter using the GPT-4 encoding, which is a
// close enough approximation for every supported provider.
func NewTokenCounter() (*TokenCounter, error) {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer codec: %w", err)
	}
	return &TokenCounter{codec: codec}, nil
}

// Count returns the number of tokens in text. Falls back to 4 chars per token.
func (tc *TokenCounter) Count(text string) int {
	if tc == nil || tc.codec == nil {
		return len(text) / 4
	}
	count, err := tc.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return count
}

var (
	defaultCounter     *TokenCounter
	defaultCounterOnce sync.Once
)

// CountTokens counts with a lazily built shared counter.
func CountTokens(text string) int {
	defaultCounterOnce.Do(func() {
		defaultCounter, _ = NewTokenCounter()
	})
	return defaultCounter.Count(text)
}
