package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gameforge/internal/mocks"
	"gameforge/pkg/cache"
	"gameforge/pkg/invoker"
	"gameforge/pkg/llm"
	"gameforge/pkg/metrics"
	"gameforge/pkg/orchestrator"
	"gameforge/pkg/persistence"
	"gameforge/pkg/session"
	"gameforge/pkg/stages"
)

type advanceCall struct {
	SessionID string
	Message   string
}

// fakeAdvancer returns a fixed outcome and tracks concurrent calls.
type fakeAdvancer struct {
	mu       sync.Mutex
	calls    []advanceCall
	outcome  session.Outcome
	err      error
	delay    time.Duration
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	// during runs inside Advance, after the delay.
	during func(sessionID string)
}

func (f *fakeAdvancer) Advance(_ context.Context, sessionID, userMessage string) (session.Outcome, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	time.Sleep(f.delay)
	if f.during != nil {
		f.during(sessionID)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, advanceCall{SessionID: sessionID, Message: userMessage})
	return f.outcome, f.err
}

func (f *fakeAdvancer) Calls() []advanceCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]advanceCall(nil), f.calls...)
}

type testServer struct {
	server   *Server
	store    *persistence.Store
	advancer *fakeAdvancer
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := persistence.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	adv := &fakeAdvancer{outcome: session.Outcome{
		Kind:    session.KindInit,
		Payload: &session.Clarification{Questions: []string{"Solo or co-op?"}, Summary: "snake", Confidence: 0.5},
	}}
	reg := prometheus.NewRegistry()
	metrics.NewPrometheusRecorder(reg).ObserveTransition("INIT", "CLARIFYING")

	server, err := NewServer(store, adv, reg, zap.NewNop(), Config{GuestOwner: "guest"})
	require.NoError(t, err)
	return &testServer{server: server, store: store, advancer: adv}
}

func (ts *testServer) do(t *testing.T, method, path, owner string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if owner != "" {
		req.Header.Set(HeaderOwnerID, owner)
	}
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestNewServerValidation(t *testing.T) {
	store, err := persistence.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	_, err = NewServer(nil, &fakeAdvancer{}, nil, zap.NewNop(), Config{})
	assert.Error(t, err)
	_, err = NewServer(store, nil, nil, zap.NewNop(), Config{})
	assert.Error(t, err)
	_, err = NewServer(store, &fakeAdvancer{}, nil, nil, Config{})
	assert.ErrorContains(t, err, "logger is required")

	s, err := NewServer(store, &fakeAdvancer{}, nil, zap.NewNop(), Config{})
	require.NoError(t, err)
	assert.Equal(t, ":8080", s.config.Addr)
}

func TestHealthAndMetrics(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody[HealthResponse](t, rec).Status)

	rec = ts.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gameforge_phase_transitions_total")
}

func TestChatRequiresOwner(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/chat", "", ChatRequest{Prompt: "snake"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized", decodeBody[ErrorResponse](t, rec).Error)
	assert.Empty(t, ts.advancer.Calls())
}

func TestChatNewSession(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/chat", "alice", ChatRequest{Prompt: "a snake game"})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "INIT", resp["type"])
	sessionID, _ := resp["sessionId"].(string)
	require.NotEmpty(t, sessionID)
	data, _ := resp["data"].(map[string]any)
	assert.Equal(t, "snake", data["summary"])

	calls := ts.advancer.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, advanceCall{SessionID: sessionID}, calls[0])

	sess, err := ts.store.GetSession(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, "alice", sess.OwnerID)
	assert.Equal(t, "a snake game", sess.OriginalPrompt)
}

func TestChatContinueSession(t *testing.T) {
	ts := setupTestServer(t)
	sess, err := ts.store.CreateSession(context.Background(), "alice", "snake")
	require.NoError(t, err)

	rec := ts.do(t, http.MethodPost, "/api/chat", "alice", ChatRequest{SessionID: sess.ID, Message: "solo", Prompt: "ignored"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, sess.ID, decodeBody[ChatResponse](t, rec).SessionID)
	assert.Equal(t, []advanceCall{{SessionID: sess.ID, Message: "solo"}}, ts.advancer.Calls())
}

func TestChatForeignOrUnknownSession(t *testing.T) {
	ts := setupTestServer(t)
	sess, err := ts.store.CreateSession(context.Background(), "alice", "snake")
	require.NoError(t, err)

	for _, id := range []string{sess.ID, "no-such-session"} {
		rec := ts.do(t, http.MethodPost, "/api/chat", "mallory", ChatRequest{SessionID: id, Message: "hi"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Session not found", decodeBody[ErrorResponse](t, rec).Error)
	}
	assert.Empty(t, ts.advancer.Calls())
}

func TestChatMissingPromptAndSession(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/chat", "alice", ChatRequest{Message: "hello"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing prompt or sessionId", decodeBody[ErrorResponse](t, rec).Error)
}

func TestChatGuestSingleSlot(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()

	for _, prompt := range []string{"first", "second"} {
		rec := ts.do(t, http.MethodPost, "/api/chat", "guest", ChatRequest{Prompt: prompt})
		require.Equal(t, http.StatusOK, rec.Code)
	}
	list, err := ts.store.ListSessions(ctx, "guest")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "second", list[0].Prompt)

	for _, prompt := range []string{"first", "second"} {
		rec := ts.do(t, http.MethodPost, "/api/chat", "alice", ChatRequest{Prompt: prompt})
		require.Equal(t, http.StatusOK, rec.Code)
	}
	list, err = ts.store.ListSessions(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestChatAdvanceErrors(t *testing.T) {
	ts := setupTestServer(t)
	sess, err := ts.store.CreateSession(context.Background(), "alice", "snake")
	require.NoError(t, err)

	ts.advancer.outcome = session.ErrorOutcome("Unknown session status")
	ts.advancer.err = session.ErrUnknownPhase
	rec := ts.do(t, http.MethodPost, "/api/chat", "alice", ChatRequest{SessionID: sess.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[ChatResponse](t, rec)
	assert.Equal(t, session.KindError, resp.Type)
	assert.Equal(t, "Unknown session status", resp.Data)

	ts.advancer.err = errors.New("disk full")
	rec = ts.do(t, http.MethodPost, "/api/chat", "alice", ChatRequest{SessionID: sess.ID})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "disk full", decodeBody[ErrorResponse](t, rec).Error)
}

func TestChatSerialisesPerSession(t *testing.T) {
	ts := setupTestServer(t)
	ts.advancer.delay = 20 * time.Millisecond
	sess, err := ts.store.CreateSession(context.Background(), "alice", "snake")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := ts.do(t, http.MethodPost, "/api/chat", "alice", ChatRequest{SessionID: sess.ID})
			assert.Equal(t, http.StatusOK, rec.Code)
		}()
	}
	wg.Wait()

	assert.Len(t, ts.advancer.Calls(), 4)
	assert.Equal(t, int32(1), ts.advancer.maxSeen.Load())
}

func TestListSessions(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()

	older, err := ts.store.CreateSession(ctx, "alice", "older")
	require.NoError(t, err)
	phase := session.PhaseBuilding
	require.NoError(t, ts.store.UpdateSession(ctx, older.ID, session.Patch{
		Phase:         &phase,
		Clarification: &session.Clarification{IsSufficient: true, Confidence: 1},
		Plan:          &session.Plan{Title: "Snake", Description: "Eat apples", Framework: session.FrameworkVanilla},
	}))
	_, err = ts.store.CreateSession(ctx, "alice", "newer")
	require.NoError(t, err)
	_, err = ts.store.CreateSession(ctx, "bob", "not mine")
	require.NoError(t, err)

	rec := ts.do(t, http.MethodGet, "/api/sessions", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]SessionSummary](t, rec)
	require.Len(t, list, 2)
	assert.Equal(t, "newer", list[0].Prompt)
	assert.Nil(t, list[0].Plan)
	assert.Equal(t, "older", list[1].Prompt)
	assert.Equal(t, session.PhaseBuilding, list[1].Status)
	assert.Equal(t, &PlanSummary{Title: "Snake", Description: "Eat apples"}, list[1].Plan)

	rec = ts.do(t, http.MethodGet, "/api/sessions", "carol", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestGetSession(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()
	sess, err := ts.store.CreateSession(ctx, "alice", "snake")
	require.NoError(t, err)
	require.NoError(t, ts.store.UpdateSession(ctx, sess.ID, session.Failure("provider down", 3)))

	rec := ts.do(t, http.MethodGet, "/api/sessions/"+sess.ID, "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decodeBody[SessionDetail](t, rec)
	assert.Equal(t, sess.ID, detail.ID)
	assert.Equal(t, session.PhaseFailed, detail.Status)
	require.NotNil(t, detail.Error)
	assert.Equal(t, "provider down", *detail.Error)

	rec = ts.do(t, http.MethodGet, "/api/sessions/"+sess.ID, "bob", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = ts.do(t, http.MethodGet, "/api/sessions/missing", "alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = ts.do(t, http.MethodGet, "/api/sessions/"+sess.ID, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGuestSlotWaitsForInFlightAdvance(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()
	old, err := ts.store.CreateSession(ctx, "guest", "first")
	require.NoError(t, err)

	var stillThere atomic.Bool
	ts.advancer.delay = 50 * time.Millisecond
	ts.advancer.during = func(id string) {
		if id != old.ID {
			return
		}
		_, err := ts.store.GetSession(ctx, id)
		stillThere.Store(err == nil)
	}

	done := make(chan int, 1)
	go func() {
		rec := ts.do(t, http.MethodPost, "/api/chat", "guest", ChatRequest{SessionID: old.ID, Message: "answer"})
		done <- rec.Code
	}()
	time.Sleep(10 * time.Millisecond)

	rec := ts.do(t, http.MethodPost, "/api/chat", "guest", ChatRequest{Prompt: "second"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusOK, <-done)
	assert.True(t, stillThere.Load())

	list, err := ts.store.ListSessions(ctx, "guest")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "second", list[0].Prompt)
}

func TestChatAbandonedRequestKeepsSession(t *testing.T) {
	store, err := persistence.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	client := mocks.NewMockLLMClient()
	client.OnComplete(func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
		select {
		case <-ctx.Done():
			return llm.CompletionResponse{}, ctx.Err()
		case <-time.After(100 * time.Millisecond):
			return llm.CompletionResponse{Content: `{"questions":["Walls?"],"isSufficient":false,"summary":"snake","confidence":0.5}`, Model: req.Model}, nil
		}
	})
	inv, err := invoker.New(client, cache.New(store, nil), llm.Models{Plan: "plan", Build: "build"},
		invoker.Policy{MaxAttempts: 3, DelayBase: time.Millisecond})
	require.NoError(t, err)
	set, err := stages.NewSet(inv)
	require.NoError(t, err)
	server, err := NewServer(store, orchestrator.New(store, set), nil, zap.NewNop(), Config{})
	require.NoError(t, err)

	sess, err := store.CreateSession(context.Background(), "alice", "Build a snake game")
	require.NoError(t, err)

	raw, err := json.Marshal(ChatRequest{SessionID: sess.ID})
	require.NoError(t, err)
	reqCtx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(raw)).WithContext(reqCtx)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(HeaderOwnerID, "alice")

	done := make(chan struct{})
	go func() {
		defer close(done)
		server.Handler().ServeHTTP(httptest.NewRecorder(), req)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	stored, err := store.GetSession(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, session.PhaseClarifying, stored.Phase)
	assert.Empty(t, stored.FailureReason)
}
