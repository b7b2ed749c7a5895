package metrics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// ModelUsage is the aggregated token usage of one model.
type ModelUsage struct {
	Model            string `json:"model"`
	PromptTokens     int64  `json:"prompt_tokens"`
	CompletionTokens int64  `json:"completion_tokens"`
	Requests         int64  `json:"requests"`
	Errors           int64  `json:"errors"`
}

// QueryService reads the recorded series back from a Prometheus server.
type QueryService struct {
	queryAPI v1.API
}

// NewQueryService creates a new metrics query service.
func NewQueryService(prometheusURL string) (*QueryService, error) {
	client, err := api.NewClient(api.Config{Address: prometheusURL})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}
	return &QueryService{queryAPI: v1.NewAPI(client)}, nil
}

// Usage returns per-model token and request totals.
func (q *QueryService) Usage(ctx context.Context) ([]ModelUsage, error) {
	byModel := make(map[string]*ModelUsage)
	get := func(m string) *ModelUsage {
		if u, ok := byModel[m]; ok {
			return u
		}
		u := &ModelUsage{Model: m}
		byModel[m] = u
		return u
	}

	tokens, err := q.vector(ctx, `sum by (model, kind) (gameforge_llm_tokens_total)`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tokens: %w", err)
	}
	for _, s := range tokens {
		u := get(string(s.Metric["model"]))
		switch s.Metric["kind"] {
		case "prompt":
			u.PromptTokens = int64(s.Value)
		case "completion":
			u.CompletionTokens = int64(s.Value)
		}
	}

	requests, err := q.vector(ctx, `sum by (model, status) (gameforge_llm_requests_total)`)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	for _, s := range requests {
		u := get(string(s.Metric["model"]))
		u.Requests += int64(s.Value)
		if s.Metric["status"] == "error" {
			u.Errors += int64(s.Value)
		}
	}

	out := make([]ModelUsage, 0, len(byModel))
	for _, u := range byModel {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out, nil
}

func (q *QueryService) vector(ctx context.Context, query string) (model.Vector, error) {
	result, _, err := q.queryAPI.Query(ctx, query, time.Now())
	if err != nil {
		return nil, err //nolint:wrapcheck // wrapped by caller
	}
	vector, ok := result.(model.Vector)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %s", result.Type())
	}
	return vector, nil
}
