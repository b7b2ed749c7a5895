package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorder(reg)

	rec.ObserveRequest("m1", 10, 20, true, "", time.Second)
	rec.ObserveRequest("m1", 0, 0, false, "transient", time.Second)
	rec.ObserveCacheLookup(true)
	rec.ObserveCacheLookup(false)
	rec.ObserveCacheLookup(false)
	rec.ObserveTransition("INIT", "CLARIFYING")
	rec.IncThrottle("m1", "rate_limit")

	assert.Equal(t, 1.0, testutil.ToFloat64(rec.requestsTotal.WithLabelValues("m1", "success", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.requestsTotal.WithLabelValues("m1", "error", "transient")))
	assert.Equal(t, 10.0, testutil.ToFloat64(rec.tokensTotal.WithLabelValues("m1", "prompt")))
	assert.Equal(t, 20.0, testutil.ToFloat64(rec.tokensTotal.WithLabelValues("m1", "completion")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(rec.cacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.transitionsTotal.WithLabelValues("INIT", "CLARIFYING")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.throttleTotal.WithLabelValues("m1", "rate_limit")))
}

func TestSeparateRegistriesDoNotCollide(t *testing.T) {
	assert.NotPanics(t, func() {
		NewPrometheusRecorder(prometheus.NewRegistry())
		NewPrometheusRecorder(prometheus.NewRegistry())
	})
}

func TestNopRecorder(t *testing.T) {
	rec := Nop()
	rec.ObserveRequest("m", 1, 1, true, "", time.Millisecond)
	rec.ObserveCacheLookup(true)
	rec.ObserveTransition("a", "b")
}

func TestTokenCounter(t *testing.T) {
	tc, err := NewTokenCounter()
	require.NoError(t, err)
	assert.Greater(t, tc.Count("Build a snake game with keyboard controls"), 3)
	assert.Equal(t, 0, tc.Count(""))

	var nilCounter *TokenCounter
	assert.Equal(t, 2, nilCounter.Count("12345678"))
	assert.Greater(t, CountTokens("hello world"), 0)
}

func TestQueryServiceUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(r.Form.Get("query"), "tokens") {
			_, _ = w.Write([]byte(`{"status":"success","data":{"resultType":"vector","result":[
				{"metric":{"model":"m1","kind":"prompt"},"value":[1700000000,"120"]},
				{"metric":{"model":"m1","kind":"completion"},"value":[1700000000,"300"]}]}}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"success","data":{"resultType":"vector","result":[
			{"metric":{"model":"m1","status":"success"},"value":[1700000000,"4"]},
			{"metric":{"model":"m1","status":"error"},"value":[1700000000,"1"]}]}}`))
	}))
	defer srv.Close()

	q, err := NewQueryService(srv.URL)
	require.NoError(t, err)

	usage, err := q.Usage(context.Background())
	require.NoError(t, err)
	require.Len(t, usage, 1)
	assert.Equal(t, ModelUsage{Model: "m1", PromptTokens: 120, CompletionTokens: 300, Requests: 5, Errors: 1}, usage[0])
}
