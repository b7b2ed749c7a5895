// Package anthropic implements llm.LLMClient with the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"gameforge/pkg/llm"
	"gameforge/pkg/llmerrors"
)

// jsonOnlyInstruction is appended when JSON output is forced; the Messages
// API has no response_format switch.
const jsonOnlyInstruction = "\n\nRespond with a single JSON object only. Do not wrap it in markdown."

type Client struct {
	client anthropic.Client
	model  string
}

func New(apiKey, model string, opts ...option.RequestOption) *Client {
	all := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, opts...)
	return &Client{
		client: anthropic.NewClient(all...),
		model:  model,
	}
}

//nolint:gocritic // CompletionRequest passed by value to match interface
func (c *Client) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	model := in.ModelOr(c.model)

	system := in.SystemInstructions
	if in.ForceJSON {
		system += jsonOnlyInstruction
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   int64(in.MaxOutputTokens),
		Temperature: anthropic.Float(float64(in.Temperature)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(in.UserInput)),
		},
		System: []anthropic.TextBlockParam{{Text: system}},
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return llm.CompletionResponse{}, classifyError(err)
	}
	if resp == nil || len(resp.Content) == 0 {
		return llm.CompletionResponse{}, llmerrors.Malformed(nil, "received empty response from Claude API")
	}

	var text strings.Builder
	for i := range resp.Content {
		if resp.Content[i].Type == "text" {
			text.WriteString(resp.Content[i].AsText().Text)
		}
	}

	return llm.CompletionResponse{
		Content:      text.String(),
		Model:        model,
		StopReason:   string(resp.StopReason),
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}, nil
}

func (c *Client) GetModelName() string {
	return c.model
}

// classifyError maps Anthropic SDK errors onto the provider taxonomy by status.
func classifyError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return llmerrors.FromStatus(apiErr.StatusCode, errorMessage(apiErr), err)
	}
	return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeUnknown, err, err.Error())
}

func errorMessage(apiErr *anthropic.Error) string {
	msg := apiErr.Error()
	if len(msg) > 300 {
		msg = msg[:300]
	}
	return msg
}
