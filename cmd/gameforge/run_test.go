package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gameforge/pkg/eventlog"
	"gameforge/pkg/session"
)

type fakeStore struct {
	owner, prompt string
}

func (f *fakeStore) CreateSession(_ context.Context, ownerID, prompt string) (*session.Session, error) {
	f.owner, f.prompt = ownerID, prompt
	return &session.Session{ID: "s-1", OwnerID: ownerID, OriginalPrompt: prompt, Phase: session.PhaseInit}, nil
}

// scriptedAdvancer replays outcomes and records the messages it received.
type scriptedAdvancer struct {
	outcomes []session.Outcome
	messages []string
}

func (s *scriptedAdvancer) Advance(_ context.Context, _ string, msg string) (session.Outcome, error) {
	s.messages = append(s.messages, msg)
	if len(s.outcomes) == 0 {
		return session.ErrorOutcome("script exhausted"), nil
	}
	next := s.outcomes[0]
	s.outcomes = s.outcomes[1:]
	return next, nil
}

func newTestRunner(input string, adv advancer, dir string) (*runner, *fakeStore, *bytes.Buffer) {
	store := &fakeStore{}
	out := &bytes.Buffer{}
	return &runner{
		store:     store,
		advancer:  adv,
		in:        bufio.NewReader(strings.NewReader(input)),
		out:       out,
		exportDir: dir,
	}, store, out
}

func TestRunnerFullSession(t *testing.T) {
	dir := t.TempDir()
	adv := &scriptedAdvancer{outcomes: []session.Outcome{
		{Kind: session.KindInit, Payload: &session.Clarification{
			Questions: []string{"Single or multiplayer?", "Keyboard or mouse?"},
			Summary:   "A snake game",
		}},
		{Kind: session.KindClarifying, Payload: &session.Clarification{IsSufficient: true, Summary: "Solo snake, arrows", Confidence: 0.9}},
		{Kind: session.KindPlanning, Payload: &session.Plan{Title: "Snake", Framework: session.FrameworkVanilla}},
		{Kind: session.KindCoding, Payload: &session.Artifact{}},
		{Kind: session.KindCompleted, Payload: &session.Artifact{
			Files:      []session.File{{Filename: "index.html", Content: "<canvas></canvas>"}},
			EntryPoint: "index.html",
		}},
	}}

	r, store, out := newTestRunner("alice\nsnake\nsolo, arrow keys\n", adv, dir)
	require.NoError(t, r.run(context.Background()))

	assert.Equal(t, "alice", store.owner)
	assert.Equal(t, "snake", store.prompt)
	assert.Equal(t, []string{"", "solo, arrow keys", "solo, arrow keys", "solo, arrow keys", "solo, arrow keys"}, adv.messages)

	text := out.String()
	assert.Contains(t, text, "1. Single or multiplayer?")
	assert.Contains(t, text, "2. Keyboard or mouse?")
	assert.Contains(t, text, "Summary: Solo snake, arrows")
	assert.Contains(t, text, "Snake (vanilla)")

	data, err := os.ReadFile(filepath.Join(dir, "alice", "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "<canvas></canvas>", string(data))
}

func TestRunnerStopsOnError(t *testing.T) {
	adv := &scriptedAdvancer{outcomes: []session.Outcome{session.ErrorOutcome("max retries reached after 3 attempts: boom")}}
	r, _, out := newTestRunner("snake\n", adv, t.TempDir())
	r.owner = "bob"

	err := r.run(context.Background())
	require.Error(t, err)
	assert.Contains(t, out.String(), "Error: max retries reached after 3 attempts: boom")
	assert.Len(t, adv.messages, 1)
}

func TestRunnerInputClosed(t *testing.T) {
	adv := &scriptedAdvancer{outcomes: []session.Outcome{
		{Kind: session.KindInit, Payload: &session.Clarification{Questions: []string{"?"}}},
	}}
	r, _, _ := newTestRunner("bob\nsnake\n", adv, t.TempDir())

	err := r.run(context.Background())
	assert.True(t, errors.Is(err, errNoInput))
}

func TestWriteSessionFormats(t *testing.T) {
	sess := &session.Session{ID: "s-1", OwnerID: "alice", OriginalPrompt: "snake", Phase: session.PhaseInit}

	var buf bytes.Buffer
	require.NoError(t, writeSession(&buf, sess, "json"))
	assert.Contains(t, buf.String(), `"status": "INIT"`)

	buf.Reset()
	require.NoError(t, writeSession(&buf, sess, "yaml"))
	assert.Contains(t, buf.String(), "status: INIT")
	assert.Contains(t, buf.String(), "prompt: snake")

	assert.Error(t, writeSession(&buf, sess, "xml"))
}

func TestWriteSummaries(t *testing.T) {
	var buf bytes.Buffer
	writeSummaries(&buf, nil)
	assert.Equal(t, "No sessions.\n", buf.String())

	buf.Reset()
	writeSummaries(&buf, []session.Summary{
		{ID: "a", Prompt: "snake", Phase: session.PhaseCompleted, Title: "Snake"},
		{ID: "b", Prompt: "pong", Phase: session.PhaseInit},
	})
	assert.Contains(t, buf.String(), "Snake")
	assert.Contains(t, buf.String(), "pong")
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"run", "new", "advance", "show", "list", "export", "serve", "secrets", "usage", "config", "events"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
	cmd, _, err := root.Find([]string{"secrets", "set"})
	require.NoError(t, err)
	assert.Equal(t, "set", cmd.Name())
}

func TestCollectEvents(t *testing.T) {
	dir := t.TempDir()
	w, err := eventlog.NewWriter(dir)
	require.NoError(t, err)
	require.NoError(t, w.Record(eventlog.Event{SessionID: "a", From: session.PhaseInit, To: session.PhaseClarifying, Kind: session.KindInit}))
	require.NoError(t, w.Record(eventlog.Event{SessionID: "b", From: session.PhaseInit, To: session.PhaseFailed, Kind: session.KindError, Attempts: 3, Error: "boom"}))
	require.NoError(t, w.Close())

	all, err := collectEvents(dir, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	only, err := collectEvents(dir, "b")
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, session.PhaseFailed, only[0].To)

	var buf bytes.Buffer
	require.NoError(t, writeEvents(&buf, only))
	assert.Contains(t, buf.String(), "ATTEMPTS")
	assert.Contains(t, buf.String(), "boom")

	buf.Reset()
	require.NoError(t, writeEvents(&buf, nil))
	assert.Equal(t, "No events.\n", buf.String())

	_, err = collectEvents("", "")
	assert.ErrorContains(t, err, "disabled")
}
