// Package llmerrors provides a closed classification of provider failures.
package llmerrors

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorType is the closed set of provider failure categories.
type ErrorType int8

const (
	// ErrorTypeUnknown is anything not otherwise classified, including network errors.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeTransient is a 5xx-class provider response. The only retryable type.
	ErrorTypeTransient
	// ErrorTypeRateLimited is a 429 response; treated as definitive quota exhaustion.
	ErrorTypeRateLimited
	// ErrorTypeMalformedOutput is empty content, unparseable JSON or a result failing validation.
	ErrorTypeMalformedOutput
)

func (et ErrorType) String() string {
	switch et {
	case ErrorTypeUnknown:
		return "unknown"
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeRateLimited:
		return "rate_limited"
	case ErrorTypeMalformedOutput:
		return "malformed_output"
	default:
		return "invalid"
	}
}

// Retryable reports whether failures of this type may be attempted again.
func (et ErrorType) Retryable() bool {
	return et == ErrorTypeTransient
}

// Error represents a classified provider error.
type Error struct {
	Err        error     // Wrapped underlying error
	Message    string    // Human-readable error message
	Type       ErrorType // Classified error type
	StatusCode int       // HTTP status code if applicable
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("LLM error (%s): %s", e.Type.String(), e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("LLM error (%s): %v", e.Type.String(), e.Err)
	}
	return fmt.Sprintf("LLM error (%s): status %d", e.Type.String(), e.StatusCode)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable returns whether this error may be retried.
func (e *Error) Retryable() bool {
	return e.Type.Retryable()
}

// Classify maps a provider status code and message to an error type.
// It has no side effects; status 0 means no HTTP response was received.
func Classify(status int, message string) ErrorType {
	switch {
	case status >= http.StatusInternalServerError && status <= 599:
		return ErrorTypeTransient
	case status == http.StatusTooManyRequests:
		return ErrorTypeRateLimited
	default:
		return ErrorTypeUnknown
	}
}

// FromStatus builds a classified error from a provider status and message.
func FromStatus(status int, message string, cause error) *Error {
	t := Classify(status, message)
	if t == ErrorTypeRateLimited {
		lower := strings.ToLower(message)
		if strings.Contains(lower, "rate limit") || strings.Contains(lower, "quota") {
			message = "rate limit exceeded: " + message
		} else {
			message = "too many requests: " + message
		}
	}
	return &Error{
		Type:       t,
		StatusCode: status,
		Message:    message,
		Err:        cause,
	}
}

// Is checks if an error is of a specific type.
func Is(err error, errorType ErrorType) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type == errorType
	}
	return false
}

// TypeOf returns the error type of an error, or ErrorTypeUnknown if not classified.
func TypeOf(err error) ErrorType {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type
	}
	return ErrorTypeUnknown
}

// IsRetryable reports whether err is a classified retryable error.
// Unclassified errors are never retried.
func IsRetryable(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Retryable()
	}
	return false
}

// NewErrorWithCause creates a classified error wrapping another error.
func NewErrorWithCause(errorType ErrorType, cause error, message string) *Error {
	return &Error{
		Type:    errorType,
		Err:     cause,
		Message: message,
	}
}

// Malformed creates a MalformedOutput error.
func Malformed(cause error, format string, args ...any) *Error {
	return NewErrorWithCause(ErrorTypeMalformedOutput, cause, fmt.Sprintf(format, args...))
}

// SanitizePrompt creates a safe representation of a prompt for logging.
// For large prompts, it returns first/last portions plus a hash of the full content.
func SanitizePrompt(prompt string, maxChars int) string {
	if len(prompt) <= maxChars {
		return prompt
	}

	halfMax := maxChars / 2
	if halfMax < 16 {
		halfMax = 16
	}
	if 2*halfMax >= len(prompt) {
		return prompt
	}

	hash := sha256.Sum256([]byte(prompt))
	return fmt.Sprintf("%s...[%d chars, hash:%x]...%s",
		prompt[:halfMax], len(prompt), hash[:8], prompt[len(prompt)-halfMax:])
}
