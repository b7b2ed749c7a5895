package provider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gameforge/internal/mocks"
	"gameforge/pkg/llm"
)

func TestNewRawSelectsProvider(t *testing.T) {
	for _, name := range []string{OpenRouter, Anthropic, Google} {
		t.Run(name, func(t *testing.T) {
			client, err := NewRaw(Options{Provider: name, APIKey: "k", DefaultModel: "m"})
			require.NoError(t, err)
			assert.Equal(t, "m", client.GetModelName())
		})
	}

	client, err := NewRaw(Options{Provider: Ollama, DefaultModel: "ollama/llama3"})
	require.NoError(t, err)
	assert.Equal(t, "ollama/llama3", client.GetModelName())
}

func TestNewRawErrors(t *testing.T) {
	_, err := NewRaw(Options{Provider: "bedrock", APIKey: "k"})
	assert.ErrorContains(t, err, "unknown provider")

	_, err = NewRaw(Options{Provider: Anthropic})
	assert.ErrorContains(t, err, "requires an API key")
}

func TestWrapKeepsModelAndDelegates(t *testing.T) {
	base := mocks.NewMockLLMClient()
	base.RespondWith(`{"ok":true}`)

	client := Wrap(base, Options{AttemptTimeout: time.Second})
	resp, err := client.Complete(context.Background(), llm.CompletionRequest{UserInput: "x", MaxOutputTokens: 1})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, resp.Content)
	assert.Equal(t, "mock-model", client.GetModelName())
	assert.Equal(t, 1, base.CallCount())
}
