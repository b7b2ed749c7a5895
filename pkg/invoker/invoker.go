// Package invoker is the single path from stage handlers to the provider:
// fingerprint cache, bounded retry, JSON decoding and result validation.
package invoker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gameforge/pkg/cache"
	"gameforge/pkg/llm"
	"gameforge/pkg/llmerrors"
	"gameforge/pkg/logx"
)

// Validator is implemented by results that check themselves after decoding.
type Validator interface {
	Validate() error
}

// Call describes one structured provider call.
type Call struct {
	Instructions string
	Input        string
	Mode         llm.Mode
	SessionID    string
}

// Invoker owns the provider client and the fingerprint cache.
type Invoker struct {
	client llm.LLMClient
	cache  *cache.Cache
	models llm.Models
	policy Policy
	logger *logx.Logger
}

// New creates an invoker. A nil cache disables caching.
func New(client llm.LLMClient, c *cache.Cache, models llm.Models, policy Policy) (*Invoker, error) {
	if client == nil {
		return nil, errors.New("invoker requires an LLM client")
	}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry policy: %w", err)
	}
	return &Invoker{
		client: client,
		cache:  c,
		models: models,
		policy: policy,
		logger: logx.NewLogger("invoker"),
	}, nil
}

// Invoke returns the cached result for the call's fingerprint, or calls the
// provider under the retry policy, decodes and validates the JSON into T,
// caches it and returns it. Failures are returned as *Error.
func Invoke[T any](ctx context.Context, inv *Invoker, call Call) (*T, error) {
	ctx = logx.WithSessionID(ctx, call.SessionID)

	req, err := inv.models.NewRequest(call.Mode, call.Instructions, call.Input)
	if err != nil {
		return nil, &Error{Err: err}
	}

	if inv.cache == nil {
		raw, _, err := attempt[T](ctx, inv, req)
		if err != nil {
			return nil, err
		}
		result, err := decode[T](raw)
		if err != nil {
			return nil, &Error{Err: err, Attempts: 1}
		}
		return result, nil
	}

	fp := cache.Fingerprint(call.Instructions, call.Input)
	raw, hit, err := inv.cache.Do(ctx, fp, func(ctx context.Context) (json.RawMessage, string, error) {
		return attempt[T](ctx, inv, req)
	})
	if err != nil {
		var invErr *Error
		if errors.As(err, &invErr) {
			return nil, invErr
		}
		return nil, &Error{Err: err}
	}
	if hit {
		logx.Debug(ctx, "invoker", "cache hit %s", fp[:12])
	}

	result, err := decode[T](raw)
	if err != nil {
		return nil, &Error{Err: err}
	}
	return result, nil
}

// attempt runs the retry loop and returns the normalised result JSON.
func attempt[T any](ctx context.Context, inv *Invoker, req llm.CompletionRequest) (json.RawMessage, string, error) {
	var lastErr error
	for n := 1; n <= inv.policy.MaxAttempts; n++ {
		resp, err := inv.client.Complete(ctx, req)
		if err == nil {
			raw, perr := parse[T](resp.Content)
			if perr == nil {
				return raw, resp.Model, nil
			}
			err = perr
		}
		lastErr = err

		if !inv.policy.ShouldRetry(err) {
			inv.logger.Error("non-retryable failure on attempt %d: %v", n, err)
			return nil, "", &Error{Err: err, Attempts: n}
		}
		if n == inv.policy.MaxAttempts {
			break
		}

		delay := inv.policy.Delay(n)
		inv.logger.Warn("attempt %d/%d failed, retrying in %s: %v", n, inv.policy.MaxAttempts, delay, err)
		if err := sleep(ctx, delay); err != nil {
			return nil, "", &Error{Err: fmt.Errorf("retry cancelled: %w", err), Attempts: n}
		}
	}

	inv.logger.Error("max retries reached: %v", lastErr)
	return nil, "", &Error{Err: lastErr, Attempts: inv.policy.MaxAttempts, Exhausted: true}
}

// parse decodes provider content into T, validates it and re-encodes the
// normalised value for caching.
func parse[T any](content string) (json.RawMessage, error) {
	body := stripFence(content)
	if body == "" {
		return nil, llmerrors.Malformed(nil, "no content in LLM response")
	}

	var result T
	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	if err := dec.Decode(&result); err != nil {
		return nil, llmerrors.Malformed(err, "response is not valid JSON: %s", llmerrors.SanitizePrompt(body, 120))
	}
	if v, ok := any(&result).(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, llmerrors.Malformed(err, "response failed validation: %v", err)
		}
	}

	raw, err := json.Marshal(&result)
	if err != nil {
		return nil, llmerrors.Malformed(err, "failed to re-encode result")
	}
	return raw, nil
}

func decode[T any](raw json.RawMessage) (*T, error) {
	var result T
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, llmerrors.Malformed(err, "cached result is not valid JSON")
	}
	return &result, nil
}

// stripFence removes a surrounding markdown code fence some models emit
// even in JSON mode.
func stripFence(content string) string {
	s := strings.TrimSpace(content)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
