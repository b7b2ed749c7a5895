// Package ollama implements llm.LLMClient against a local Ollama server.
package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"gameforge/pkg/llm"
	"gameforge/pkg/llmerrors"
)

// DefaultHost is used when no host URL is configured.
const DefaultHost = "http://localhost:11434"

// ModelPrefix marks configured model names served by Ollama.
const ModelPrefix = "ollama/"

type Client struct {
	client *api.Client
	model  string
}

// New creates a client for hostURL. An unparsable URL falls back to DefaultHost.
func New(hostURL, model string) *Client {
	if hostURL == "" {
		hostURL = DefaultHost
	}
	parsedURL, err := url.Parse(hostURL)
	if err != nil {
		parsedURL, _ = url.Parse(DefaultHost)
	}
	return &Client{
		client: api.NewClient(parsedURL, http.DefaultClient),
		model:  model,
	}
}

//nolint:gocritic // CompletionRequest passed by value to match interface
func (o *Client) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	model := strings.TrimPrefix(in.ModelOr(o.model), ModelPrefix)

	stream := false
	req := &api.ChatRequest{
		Model: model,
		Messages: []api.Message{
			{Role: "system", Content: in.SystemInstructions},
			{Role: "user", Content: in.UserInput},
		},
		Stream: &stream,
		Options: map[string]any{
			"temperature": in.Temperature,
			"num_predict": in.MaxOutputTokens,
		},
	}
	if in.ForceJSON {
		req.Format = json.RawMessage(`"json"`)
	}

	var response api.ChatResponse
	err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		response = resp
		return nil
	})
	if err != nil {
		return llm.CompletionResponse{}, classifyError(err)
	}

	return llm.CompletionResponse{
		Content:      response.Message.Content,
		Model:        in.ModelOr(o.model),
		StopReason:   response.DoneReason,
		InputTokens:  response.PromptEvalCount,
		OutputTokens: response.EvalCount,
	}, nil
}

func (o *Client) GetModelName() string {
	return o.model
}

func classifyError(err error) error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return llmerrors.FromStatus(statusErr.StatusCode, statusErr.ErrorMessage, err)
	}
	return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeUnknown, err, err.Error())
}
