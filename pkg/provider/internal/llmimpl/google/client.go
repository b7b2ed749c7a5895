// Package google implements llm.LLMClient with the Gemini API.
package google

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"google.golang.org/genai"

	"gameforge/pkg/llm"
	"gameforge/pkg/llmerrors"
)

type Client struct {
	client  *genai.Client
	apiKey  string
	model   string
	baseURL string
	mu      sync.Mutex
}

// New stores the configuration; the SDK client needs a context and is
// created on first use.
func New(apiKey, model string) *Client {
	return &Client{apiKey: apiKey, model: model}
}

func (g *Client) sdk(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}

	cfg := &genai.ClientConfig{
		APIKey:  g.apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if g.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: g.baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	g.client = client
	return client, nil
}

//nolint:gocritic // CompletionRequest passed by value to match interface
func (g *Client) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	client, err := g.sdk(ctx)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeUnknown, err, err.Error())
	}
	model := in.ModelOr(g.model)

	temperature := in.Temperature
	config := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(in.MaxOutputTokens), //nolint:gosec // bounded by mode parameters
	}
	if in.SystemInstructions != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: in.SystemInstructions}},
		}
	}
	if in.ForceJSON {
		config.ResponseMIMEType = "application/json"
	}

	result, err := client.Models.GenerateContent(ctx, model, genai.Text(in.UserInput), config)
	if err != nil {
		return llm.CompletionResponse{}, classifyError(err)
	}
	if result == nil {
		return llm.CompletionResponse{}, llmerrors.Malformed(nil, "empty response from Gemini API")
	}

	resp := llm.CompletionResponse{
		Content:    result.Text(),
		Model:      model,
		StopReason: stopReason(result),
	}
	if result.UsageMetadata != nil {
		resp.InputTokens = int(result.UsageMetadata.PromptTokenCount)
		resp.OutputTokens = int(result.UsageMetadata.CandidatesTokenCount)
	}
	return resp, nil
}

func (g *Client) GetModelName() string {
	return g.model
}

func stopReason(result *genai.GenerateContentResponse) string {
	if len(result.Candidates) == 0 || result.Candidates[0] == nil {
		return "unknown"
	}
	return string(result.Candidates[0].FinishReason)
}

func classifyError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return llmerrors.FromStatus(apiErr.Code, apiErr.Message, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return llmerrors.FromStatus(apiErrPtr.Code, apiErrPtr.Message, err)
	}
	return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeUnknown, err, err.Error())
}
