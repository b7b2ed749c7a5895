package llmerrors

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorType
	}{
		{500, ErrorTypeTransient},
		{503, ErrorTypeTransient},
		{502, ErrorTypeTransient},
		{429, ErrorTypeRateLimited},
		{400, ErrorTypeUnknown},
		{401, ErrorTypeUnknown},
		{404, ErrorTypeUnknown},
		{0, ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.status, "msg"))
		})
	}
}

func TestOnlyTransientIsRetryable(t *testing.T) {
	assert.True(t, ErrorTypeTransient.Retryable())
	assert.False(t, ErrorTypeRateLimited.Retryable())
	assert.False(t, ErrorTypeMalformedOutput.Retryable())
	assert.False(t, ErrorTypeUnknown.Retryable())
}

func TestFromStatusRateLimitMessages(t *testing.T) {
	quota := FromStatus(429, "Quota exceeded for key", nil)
	assert.Equal(t, ErrorTypeRateLimited, quota.Type)
	assert.True(t, strings.HasPrefix(quota.Message, "rate limit exceeded"))

	other := FromStatus(429, "slow down", nil)
	assert.True(t, strings.HasPrefix(other.Message, "too many requests"))
	assert.False(t, other.Retryable())
}

func TestWrappedHelpers(t *testing.T) {
	base := FromStatus(503, "overloaded", errors.New("upstream"))
	wrapped := fmt.Errorf("clarify: %w", base)

	assert.True(t, Is(wrapped, ErrorTypeTransient))
	assert.Equal(t, ErrorTypeTransient, TypeOf(wrapped))
	assert.True(t, IsRetryable(wrapped))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(errors.New("plain")))
	assert.False(t, IsRetryable(errors.New("connection reset")))
}

func TestErrorString(t *testing.T) {
	err := Malformed(nil, "no content in response")
	assert.Equal(t, "LLM error (malformed_output): no content in response", err.Error())

	statusOnly := &Error{Type: ErrorTypeTransient, StatusCode: 500}
	assert.Equal(t, "LLM error (transient): status 500", statusOnly.Error())
}

func TestSanitizePrompt(t *testing.T) {
	assert.Equal(t, "short", SanitizePrompt("short", 100))

	long := strings.Repeat("a", 50) + strings.Repeat("b", 50)
	out := SanitizePrompt(long, 40)
	assert.Contains(t, out, "[100 chars, hash:")
	assert.True(t, strings.HasPrefix(out, strings.Repeat("a", 20)))
	assert.True(t, strings.HasSuffix(out, strings.Repeat("b", 20)))
}
