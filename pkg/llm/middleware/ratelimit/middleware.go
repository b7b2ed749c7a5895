// Package ratelimit provides client-side request throttling for LLM clients.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"gameforge/pkg/llm"
	"gameforge/pkg/metrics"
)

// NewLimiter returns a limiter allowing requestsPerMinute calls with a burst
// of one. Zero disables limiting and returns nil.
func NewLimiter(requestsPerMinute int) *rate.Limiter {
	if requestsPerMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1)
}

// Middleware waits on limiter before each call. A nil limiter passes through.
func Middleware(limiter *rate.Limiter, recorder metrics.Recorder) llm.Middleware {
	if recorder == nil {
		recorder = metrics.Nop()
	}
	return func(next llm.LLMClient) llm.LLMClient {
		if limiter == nil {
			return next
		}
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				model := req.ModelOr(next.GetModelName())
				start := time.Now()
				if err := limiter.Wait(ctx); err != nil {
					recorder.IncThrottle(model, "cancelled")
					return llm.CompletionResponse{}, fmt.Errorf("rate limiter wait: %w", err)
				}
				if waited := time.Since(start); waited > time.Millisecond {
					recorder.IncThrottle(model, "delayed")
					recorder.ObserveQueueWait(model, waited)
				}
				return next.Complete(ctx, req)
			},
			next.GetModelName,
		)
	}
}
