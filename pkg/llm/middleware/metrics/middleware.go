// Package metrics provides metrics middleware for LLM clients.
package metrics

import (
	"context"
	"time"

	"gameforge/pkg/llm"
	"gameforge/pkg/llmerrors"
	"gameforge/pkg/logx"
	"gameforge/pkg/metrics"
)

// UsageExtractor returns prompt and completion token counts for a call.
type UsageExtractor func(req llm.CompletionRequest, resp llm.CompletionResponse) (promptTokens, completionTokens int)

// DefaultUsageExtractor trusts provider-reported usage and estimates with
// tiktoken when it is missing.
func DefaultUsageExtractor(req llm.CompletionRequest, resp llm.CompletionResponse) (promptTokens, completionTokens int) {
	promptTokens = resp.InputTokens
	if promptTokens == 0 {
		promptTokens = metrics.CountTokens(req.SystemInstructions + "\n" + req.UserInput)
	}
	completionTokens = resp.OutputTokens
	if completionTokens == 0 {
		completionTokens = metrics.CountTokens(resp.Content)
	}
	return promptTokens, completionTokens
}

// Middleware records one observation per attempt.
func Middleware(recorder metrics.Recorder, usageExtractor UsageExtractor, logger *logx.Logger) llm.Middleware {
	if usageExtractor == nil {
		usageExtractor = DefaultUsageExtractor
	}

	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				start := time.Now()
				model := req.ModelOr(next.GetModelName())

				resp, err := next.Complete(ctx, req)
				duration := time.Since(start)

				var promptTokens, completionTokens int
				errorType := ""
				if err == nil {
					promptTokens, completionTokens = usageExtractor(req, resp)
				} else {
					errorType = llmerrors.TypeOf(err).String()
				}

				recorder.ObserveRequest(model, promptTokens, completionTokens, err == nil, errorType, duration)

				if logger != nil {
					if err != nil {
						logger.Warn("LLM request: model=%s status=error type=%s duration=%dms", model, errorType, duration.Milliseconds())
					} else {
						logger.Info("LLM request: model=%s tokens=%d+%d status=success duration=%dms",
							model, promptTokens, completionTokens, duration.Milliseconds())
					}
				}

				return resp, err //nolint:wrapcheck // Middleware should pass through errors unchanged
			},
			next.GetModelName,
		)
	}
}
