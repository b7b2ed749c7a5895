// Package openrouter implements llm.LLMClient over any OpenAI-compatible
// Chat Completions endpoint, OpenRouter by default.
package openrouter

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"gameforge/pkg/llm"
	"gameforge/pkg/llmerrors"
)

// DefaultBaseURL is the OpenRouter API root.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// Client wraps the official OpenAI Go client.
type Client struct {
	client openai.Client
	model  string
}

// New creates a client. The SDK's own retries are disabled; retry belongs to the invoker.
func New(apiKey, baseURL, model string, opts ...option.RequestOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	all := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(0),
		option.WithHeader("X-Title", "gameforge"),
	}, opts...)

	return &Client{
		client: openai.NewClient(all...),
		model:  model,
	}
}

//nolint:gocritic // CompletionRequest passed by value to match interface
func (c *Client) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	model := in.ModelOr(c.model)

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if in.SystemInstructions != "" {
		messages = append(messages, openai.SystemMessage(in.SystemInstructions))
	}
	messages = append(messages, openai.UserMessage(in.UserInput))

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    messages,
		Temperature: openai.Float(float64(in.Temperature)),
		MaxTokens:   openai.Int(int64(in.MaxOutputTokens)),
	}
	if in.ForceJSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return llm.CompletionResponse{}, classifyError(err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return llm.CompletionResponse{}, llmerrors.Malformed(nil, "no choices in provider response")
	}

	return llm.CompletionResponse{
		Content:      resp.Choices[0].Message.Content,
		Model:        model,
		StopReason:   string(resp.Choices[0].FinishReason),
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
	}, nil
}

func (c *Client) GetModelName() string {
	return c.model
}

func classifyError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return llmerrors.FromStatus(apiErr.StatusCode, apiErr.Message, err)
	}
	return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeUnknown, err, err.Error())
}
