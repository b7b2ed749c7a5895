package logx

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(nil) })
	return &buf
}

func TestLoggerLevels(t *testing.T) {
	buf := captureOutput(t)
	logger := NewLogger("orchestrator")

	logger.Info("advanced %s", "abc")
	logger.Warn("slow call")
	logger.Error("failed: %d", 3)

	out := buf.String()
	assert.Contains(t, out, "[orchestrator]")
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "advanced abc")
	assert.Contains(t, out, "WARN")
	assert.Contains(t, out, "ERROR")
	assert.Contains(t, out, "failed: 3")
}

func TestDebugDisabledByDefault(t *testing.T) {
	buf := captureOutput(t)
	SetDebugConfig(false)

	NewLogger("invoker").Debug("hidden")
	Debug(context.Background(), "invoker", "also hidden")

	assert.Empty(t, buf.String())
}

func TestDebugDomainFiltering(t *testing.T) {
	buf := captureOutput(t)
	SetDebugConfig(true)
	SetDebugDomains([]string{"invoker"})
	t.Cleanup(func() {
		SetDebugConfig(false)
		SetDebugDomains(nil)
	})

	ctx := WithSessionID(context.Background(), "sess-1")
	Debug(ctx, "invoker", "cache miss %s", "abc")
	Debug(ctx, "stages", "should not appear")

	out := buf.String()
	assert.Contains(t, out, "[sess-1]")
	assert.Contains(t, out, "[invoker] cache miss abc")
	assert.NotContains(t, out, "should not appear")
	assert.True(t, IsDebugEnabledForDomain("invoker"))
	assert.False(t, IsDebugEnabledForDomain("stages"))
}

func TestSessionIDFromContext(t *testing.T) {
	assert.Equal(t, "", SessionID(context.Background()))
	assert.Equal(t, "x", SessionID(WithSessionID(context.Background(), "x")))
}

func TestWrap(t *testing.T) {
	buf := captureOutput(t)

	require.NoError(t, Wrap(nil, "noop"))

	base := errors.New("boom")
	err := Wrap(base, "db connect")
	require.Error(t, err)
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "db connect: boom", err.Error())
	assert.True(t, strings.Contains(buf.String(), "db connect: boom"))
}

func TestErrorf(t *testing.T) {
	captureOutput(t)
	base := errors.New("inner")
	err := Errorf("setup failed: %w", base)
	assert.ErrorIs(t, err, base)
}
