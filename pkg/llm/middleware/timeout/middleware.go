// Package timeout bounds each provider attempt with its own deadline.
package timeout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gameforge/pkg/llm"
	"gameforge/pkg/llmerrors"
)

// Middleware gives every Complete call at most d. An attempt that runs out
// of time is reported as an Unknown provider error, which the invoker does
// not retry. The caller's own cancellation passes through unchanged.
// d <= 0 disables the bound.
func Middleware(d time.Duration) llm.Middleware {
	return func(next llm.LLMClient) llm.LLMClient {
		if d <= 0 {
			return next
		}
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				attemptCtx, cancel := context.WithTimeout(ctx, d)
				defer cancel()

				resp, err := next.Complete(attemptCtx, req)
				if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
					return resp, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeUnknown, err,
						fmt.Sprintf("attempt timed out after %s", d))
				}
				return resp, err //nolint:wrapcheck // pass through
			},
			next.GetModelName,
		)
	}
}
