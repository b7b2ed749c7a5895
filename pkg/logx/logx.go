// Package logx provides component loggers with domain-filtered debug output.
package logx

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// DebugConfig controls debug logging behavior.
type DebugConfig struct {
	Enabled bool
	Domains map[string]bool // Which domains to enable debug for (nil = all)
}

type ctxKey struct{}

var (
	debugConfig = &DebugConfig{}
	debugMutex  sync.RWMutex

	coreMutex sync.RWMutex
	output    zapcore.WriteSyncer = zapcore.Lock(os.Stderr)
	base      *zap.Logger
)

func init() { //nolint:gochecknoinits // Required for env var initialization
	initDebugFromEnv()
	rebuild()
}

func initDebugFromEnv() {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	if debug := os.Getenv("DEBUG"); debug == "1" || strings.EqualFold(debug, "true") {
		debugConfig.Enabled = true
	}

	// DEBUG_DOMAINS=invoker,orchestrator
	if domains := os.Getenv("DEBUG_DOMAINS"); domains != "" {
		debugConfig.Domains = make(map[string]bool)
		for _, domain := range strings.Split(domains, ",") {
			debugConfig.Domains[strings.TrimSpace(domain)] = true
		}
	}
}

func rebuild() {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000Z")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encCfg.EncodeName = func(name string, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString("[" + name + "]")
	}
	encCfg.ConsoleSeparator = " "

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		output,
		zap.DebugLevel,
	)
	base = zap.New(core, zap.WithClock(utcClock{}))
}

// SetOutput redirects all loggers. Passing nil restores stderr.
func SetOutput(w io.Writer) {
	coreMutex.Lock()
	defer coreMutex.Unlock()
	if w == nil {
		output = zapcore.Lock(os.Stderr)
	} else {
		output = zapcore.Lock(zapcore.AddSync(w))
	}
	rebuild()
}

// Zap returns the shared zap logger, named for the given component.
func Zap(component string) *zap.Logger {
	coreMutex.RLock()
	defer coreMutex.RUnlock()
	return base.Named(component)
}

// SetDebugConfig toggles debug output.
func SetDebugConfig(enabled bool) {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	debugConfig.Enabled = enabled
}

// SetDebugDomains configures which domains should have debug logging enabled.
func SetDebugDomains(domains []string) {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	if len(domains) == 0 {
		debugConfig.Domains = nil
		return
	}
	debugConfig.Domains = make(map[string]bool, len(domains))
	for _, domain := range domains {
		debugConfig.Domains[strings.TrimSpace(domain)] = true
	}
}

func IsDebugEnabled() bool {
	debugMutex.RLock()
	defer debugMutex.RUnlock()
	return debugConfig.Enabled
}

// IsDebugEnabledForDomain returns whether debug logging is enabled for a specific domain.
func IsDebugEnabledForDomain(domain string) bool {
	debugMutex.RLock()
	defer debugMutex.RUnlock()

	if !debugConfig.Enabled {
		return false
	}
	if debugConfig.Domains == nil {
		return true
	}
	return debugConfig.Domains[domain]
}

// Logger is a printf-style logger bound to one component.
type Logger struct {
	component string
}

func NewLogger(component string) *Logger {
	return &Logger{component: component}
}

func (l *Logger) log(level Level, format string, args ...any) {
	z := Zap(l.component).Sugar()
	switch level {
	case LevelDebug:
		z.Debugf(format, args...)
	case LevelInfo:
		z.Infof(format, args...)
	case LevelWarn:
		z.Warnf(format, args...)
	case LevelError:
		z.Errorf(format, args...)
	}
}

func (l *Logger) Debug(format string, args ...any) {
	if !IsDebugEnabled() {
		return
	}
	l.log(LevelDebug, format, args...)
}

func (l *Logger) Info(format string, args ...any) {
	l.log(LevelInfo, format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.log(LevelWarn, format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.log(LevelError, format, args...)
}

func (l *Logger) Component() string {
	return l.component
}

func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{component: component}
}

// WithSessionID returns a context carrying the session id used by Debug.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, sessionID)
}

// SessionID extracts the session id stored by WithSessionID.
func SessionID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(ctxKey{}).(string); ok {
		return id
	}
	return ""
}

// Debug logs a debug message with context and domain filtering.
//
//	logx.Debug(ctx, "invoker", "cache miss for %s", fp)
//
// Controlled by DEBUG=1 and DEBUG_DOMAINS=invoker,orchestrator.
func Debug(ctx context.Context, domain, format string, args ...any) {
	if !IsDebugEnabledForDomain(domain) {
		return
	}
	name := SessionID(ctx)
	if name == "" {
		name = "unknown"
	}
	Zap(name).Sugar().Debugf("[%s] %s", domain, fmt.Sprintf(format, args...))
}

// DebugState logs a state transition with context and domain.
func DebugState(ctx context.Context, domain, action, state string, extra ...string) {
	extraInfo := ""
	if len(extra) > 0 {
		extraInfo = " - " + extra[0]
	}
	Debug(ctx, domain, "State %s: %s%s", action, state, extraInfo)
}

var defaultLogger = NewLogger("system")

func Infof(format string, args ...any) {
	defaultLogger.Info(format, args...)
}

func Warnf(format string, args ...any) {
	defaultLogger.Warn(format, args...)
}

// Errorf logs and returns the formatted error.
//
//	err := logx.Errorf("setup failed: %w", err)
func Errorf(format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	defaultLogger.Error("%s", err.Error())
	return err
}

// Wrap logs msg + ": " + err.Error() and returns fmt.Errorf("%s: %w", msg, err).
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	wrappedErr := fmt.Errorf("%s: %w", msg, err)
	defaultLogger.Error("%s", wrappedErr.Error())
	return wrappedErr
}
