// Package llm provides the provider-neutral completion client used by the invoker.
package llm

import (
	"context"
	"fmt"
)

// CompletionRequest is one non-streaming provider call.
type CompletionRequest struct {
	Model              string
	SystemInstructions string
	UserInput          string
	MaxOutputTokens    int
	Temperature        float32
	ForceJSON          bool
}

// CompletionResponse is the raw provider answer. Content is expected to hold
// a single JSON object when the request set ForceJSON.
type CompletionResponse struct {
	Content      string
	Model        string
	StopReason   string
	InputTokens  int
	OutputTokens int
}

// LLMClient defines the interface for language model interactions.
type LLMClient interface { //nolint:revive // name kept short across packages
	// Complete generates a completion synchronously.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

	// GetModelName returns the model used when a request leaves Model empty.
	GetModelName() string
}

// Validate checks the request before it is sent.
func (r *CompletionRequest) Validate() error {
	if r.UserInput == "" {
		return fmt.Errorf("user input cannot be empty")
	}
	if r.MaxOutputTokens <= 0 {
		return fmt.Errorf("max output tokens must be positive")
	}
	if r.Temperature < 0.0 || r.Temperature > 2.0 {
		return fmt.Errorf("temperature must be between 0.0 and 2.0")
	}
	return nil
}

// ModelOr returns the request model, falling back to def.
func (r *CompletionRequest) ModelOr(def string) string {
	if r.Model != "" {
		return r.Model
	}
	return def
}
