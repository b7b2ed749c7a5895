package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gameforge"

// PrometheusRecorder implements the Recorder interface using Prometheus metrics.
type PrometheusRecorder struct {
	requestsTotal    *prometheus.CounterVec
	tokensTotal      *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	throttleTotal    *prometheus.CounterVec
	queueWaitTime    *prometheus.HistogramVec
	cacheLookups     *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
}

// NewPrometheusRecorder registers the collectors on reg. A nil reg uses the
// default registerer.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_requests_total",
				Help:      "Total number of provider attempts by model, status and error type",
			},
			[]string{"model", "status", "error_type"},
		),
		tokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_tokens_total",
				Help:      "Total number of tokens used in provider calls",
			},
			[]string{"model", "kind"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "llm_request_duration_seconds",
				Help:      "Duration of provider calls in seconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"model"},
		),
		throttleTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_throttle_total",
				Help:      "Total number of client-side throttling events",
			},
			[]string{"model", "reason"},
		),
		queueWaitTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "llm_queue_wait_duration_seconds",
				Help:      "Time spent waiting for rate limit availability",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"model"},
		),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Fingerprint cache lookups by result",
			},
			[]string{"result"},
		),
		transitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "phase_transitions_total",
				Help:      "Applied session phase transitions",
			},
			[]string{"from", "to"},
		),
	}
}

func (p *PrometheusRecorder) ObserveRequest(model string, promptTokens, completionTokens int, success bool, errorType string, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	p.requestsTotal.WithLabelValues(model, status, errorType).Inc()

	if success {
		p.tokensTotal.WithLabelValues(model, "prompt").Add(float64(promptTokens))
		p.tokensTotal.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
	p.requestDuration.WithLabelValues(model).Observe(duration.Seconds())
}

func (p *PrometheusRecorder) IncThrottle(model, reason string) {
	p.throttleTotal.WithLabelValues(model, reason).Inc()
}

func (p *PrometheusRecorder) ObserveQueueWait(model string, duration time.Duration) {
	p.queueWaitTime.WithLabelValues(model).Observe(duration.Seconds())
}

func (p *PrometheusRecorder) ObserveCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	p.cacheLookups.WithLabelValues(result).Inc()
}

func (p *PrometheusRecorder) ObserveTransition(from, to string) {
	p.transitionsTotal.WithLabelValues(from, to).Inc()
}
