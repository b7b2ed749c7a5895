package mocks

import (
	"context"
	"strings"
	"sync"

	"gameforge/pkg/llm"
)

// Step is one scripted Complete result.
type Step struct {
	Err     error
	Content string
}

// MockLLMClient implements llm.LLMClient for testing.
//
//nolint:govet // fieldalignment: mock struct layout optimized for readability
type MockLLMClient struct {
	// CompleteFunc is called when Complete is invoked. Override to customize behavior.
	CompleteFunc func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error)

	// CompleteCalls tracks all calls to Complete for verification.
	CompleteCalls []llm.CompletionRequest

	modelName string
	mu        sync.Mutex
}

// NewMockLLMClient returns a client answering every call with "{}".
func NewMockLLMClient() *MockLLMClient {
	m := &MockLLMClient{modelName: "mock-model"}
	m.RespondWith("{}")
	return m
}

// Complete implements llm.LLMClient.
func (m *MockLLMClient) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	m.mu.Lock()
	m.CompleteCalls = append(m.CompleteCalls, req)
	fn := m.CompleteFunc
	m.mu.Unlock()
	return fn(ctx, req)
}

// GetModelName implements llm.LLMClient.
func (m *MockLLMClient) GetModelName() string {
	return m.modelName
}

func (m *MockLLMClient) SetModelName(name string) {
	m.modelName = name
}

// OnComplete sets a custom handler for Complete calls.
func (m *MockLLMClient) OnComplete(fn func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CompleteFunc = fn
}

// FailCompleteWith configures Complete to return the specified error.
func (m *MockLLMClient) FailCompleteWith(err error) {
	m.OnComplete(func(_ context.Context, _ llm.CompletionRequest) (llm.CompletionResponse, error) {
		return llm.CompletionResponse{}, err
	})
}

// RespondWith configures Complete to return the specified content.
func (m *MockLLMClient) RespondWith(content string) {
	m.RespondWithResponse(llm.CompletionResponse{Content: content, StopReason: "end_turn"})
}

// RespondWithResponse configures Complete to return resp verbatim.
func (m *MockLLMClient) RespondWithResponse(resp llm.CompletionResponse) {
	m.OnComplete(func(_ context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
		if resp.Model == "" {
			resp.Model = req.ModelOr(m.modelName)
		}
		return resp, nil
	})
}

// RespondWithSteps plays steps in order, repeating the last one for any
// additional calls.
func (m *MockLLMClient) RespondWithSteps(steps ...Step) {
	var (
		idx   int
		idxMu sync.Mutex
	)
	m.OnComplete(func(_ context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
		idxMu.Lock()
		step := steps[len(steps)-1]
		if idx < len(steps) {
			step = steps[idx]
			idx++
		}
		idxMu.Unlock()

		if step.Err != nil {
			return llm.CompletionResponse{}, step.Err
		}
		return llm.CompletionResponse{Content: step.Content, Model: req.ModelOr(m.modelName), StopReason: "end_turn"}, nil
	})
}

// RespondBySystemPrompt answers with the first content whose key is a
// substring of the request's system instructions.
func (m *MockLLMClient) RespondBySystemPrompt(byPrompt map[string]string) {
	m.OnComplete(func(_ context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
		for key, content := range byPrompt {
			if strings.Contains(req.SystemInstructions, key) {
				return llm.CompletionResponse{Content: content, Model: req.ModelOr(m.modelName)}, nil
			}
		}
		return llm.CompletionResponse{}, nil
	})
}

// Reset clears all recorded calls.
func (m *MockLLMClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CompleteCalls = nil
}

// CallCount returns the number of times Complete was called.
func (m *MockLLMClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.CompleteCalls)
}

// LastCompleteCall returns the most recent Complete call request, or nil if none.
func (m *MockLLMClient) LastCompleteCall() *llm.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.CompleteCalls) == 0 {
		return nil
	}
	req := m.CompleteCalls[len(m.CompleteCalls)-1]
	return &req
}
