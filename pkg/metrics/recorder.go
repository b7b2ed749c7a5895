// Package metrics records provider calls, cache lookups and phase transitions.
package metrics

import "time"

// Recorder defines the interface for recording orchestration metrics.
type Recorder interface {
	// ObserveRequest records one provider attempt.
	ObserveRequest(model string, promptTokens, completionTokens int, success bool, errorType string, duration time.Duration)
	// IncThrottle counts a request delayed or refused by the client-side limiter.
	IncThrottle(model, reason string)
	// ObserveQueueWait records time spent waiting for rate limit availability.
	ObserveQueueWait(model string, duration time.Duration)
	// ObserveCacheLookup counts fingerprint cache hits and misses.
	ObserveCacheLookup(hit bool)
	// ObserveTransition counts an applied phase transition.
	ObserveTransition(from, to string)
}

// NoopRecorder implements Recorder with no-op behavior for when metrics are disabled.
type NoopRecorder struct{}

// Nop returns a no-op metrics recorder that discards all metrics.
func Nop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) ObserveRequest(_ string, _, _ int, _ bool, _ string, _ time.Duration) {}

func (n *NoopRecorder) IncThrottle(_, _ string) {}

func (n *NoopRecorder) ObserveQueueWait(_ string, _ time.Duration) {}

func (n *NoopRecorder) ObserveCacheLookup(_ bool) {}

func (n *NoopRecorder) ObserveTransition(_, _ string) {}
