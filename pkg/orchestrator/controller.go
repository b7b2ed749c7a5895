// Package orchestrator advances a session by exactly one phase per call.
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"gameforge/pkg/eventlog"
	"gameforge/pkg/invoker"
	"gameforge/pkg/logx"
	"gameforge/pkg/metrics"
	"gameforge/pkg/session"
	"gameforge/pkg/stages"
)

var (
	// ErrOwnerMismatch is returned when a caller asks for a session it does not own.
	ErrOwnerMismatch = errors.New("session belongs to another owner")
	// ErrInvalidTransition is returned when a stage proposes a move the pipeline forbids.
	ErrInvalidTransition = errors.New("invalid phase transition")
)

// Store is the session store the controller reads and writes.
type Store interface {
	GetSession(ctx context.Context, id string) (*session.Session, error)
	UpdateSession(ctx context.Context, id string, patch session.Patch) error
}

// Router maps a phase to the stage handler that serves it.
type Router interface {
	For(phase session.Phase) (stages.Handler, bool)
}

// Controller dispatches on the stored phase and is the only writer of
// session transitions, FAILED included.
type Controller struct {
	store    Store
	router   Router
	events   eventlog.Sink
	recorder metrics.Recorder
	logger   *logx.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithEventSink records every applied transition.
func WithEventSink(sink eventlog.Sink) Option {
	return func(c *Controller) {
		if sink != nil {
			c.events = sink
		}
	}
}

// WithRecorder counts applied transitions.
func WithRecorder(recorder metrics.Recorder) Option {
	return func(c *Controller) {
		if recorder != nil {
			c.recorder = recorder
		}
	}
}

// New creates a controller.
func New(store Store, router Router, opts ...Option) *Controller {
	c := &Controller{
		store:    store,
		router:   router,
		events:   eventlog.Nop(),
		recorder: metrics.Nop(),
		logger:   logx.NewLogger("orchestrator"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Advance performs one step for the session. Stage and provider failures are
// persisted as FAILED and reported as an ERROR outcome with a nil error. A
// non-nil error (always alongside an ERROR outcome) means nothing was
// written: unknown session, unknown stored phase or a store failure.
func (c *Controller) Advance(ctx context.Context, sessionID, userMessage string) (session.Outcome, error) {
	ctx = logx.WithSessionID(ctx, sessionID)

	sess, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return session.ErrorOutcome(err.Error()), fmt.Errorf("load session: %w", err)
	}

	if !sess.Phase.Valid() {
		c.logger.Warn("session %s has unknown status %q", sessionID, sess.Phase)
		err := fmt.Errorf("%w: %q", session.ErrUnknownPhase, sess.Phase)
		return session.ErrorOutcome("Unknown session status"), err
	}

	switch sess.Phase {
	case session.PhaseCompleted:
		return session.Outcome{Kind: session.KindCompleted, Payload: sess.Artifact}, nil
	case session.PhaseFailed:
		return session.ErrorOutcome(sess.FailureReason), nil
	case session.PhaseInit, session.PhaseClarifying, session.PhasePlanning, session.PhaseBuilding:
		return c.runStage(ctx, sess, userMessage)
	default:
		// Unreachable: Valid() covers every phase above.
		return session.ErrorOutcome("Unknown session status"), fmt.Errorf("%w: %q", session.ErrUnknownPhase, sess.Phase)
	}
}

// runStage runs the phase's handler and persists its transition. Once started
// it is not interrupted by the caller: an abandoned request must not turn into
// a FAILED session. Each provider attempt is still bounded by its own timeout.
func (c *Controller) runStage(ctx context.Context, sess *session.Session, userMessage string) (session.Outcome, error) {
	ctx = context.WithoutCancel(ctx)

	handler, ok := c.router.For(sess.Phase)
	if !ok {
		return c.fail(ctx, sess, fmt.Errorf("no stage handler for phase %s", sess.Phase))
	}

	logx.DebugState(ctx, "orchestrator", "enter", string(sess.Phase))
	tr, err := handler.Run(ctx, sess, userMessage)
	if err != nil {
		return c.fail(ctx, sess, err)
	}

	if !session.IsValidTransition(sess.Phase, tr.Next) {
		return c.fail(ctx, sess, fmt.Errorf("%w: %s -> %s (allowed: %v)", ErrInvalidTransition, sess.Phase, tr.Next, session.ValidNextPhases(sess.Phase)))
	}
	next := *sess
	patch := tr.Patch()
	patch.Apply(&next)
	if err := next.CheckInvariant(); err != nil {
		return c.fail(ctx, sess, err)
	}

	if err := c.store.UpdateSession(ctx, sess.ID, patch); err != nil {
		c.logger.Error("failed to persist %s -> %s for %s: %v", sess.Phase, tr.Next, sess.ID, err)
		return session.ErrorOutcome(err.Error()), fmt.Errorf("persist transition: %w", err)
	}

	kind := kindFor(sess.Phase)
	c.applied(eventlog.Event{SessionID: sess.ID, From: sess.Phase, To: tr.Next, Kind: kind})
	c.logger.Info("session %s: %s -> %s", sess.ID, sess.Phase, tr.Next)

	return session.Outcome{Kind: kind, Payload: payloadOf(tr)}, nil
}

// fail persists FAILED with the error message and the attempts the invoker made.
func (c *Controller) fail(ctx context.Context, sess *session.Session, cause error) (session.Outcome, error) {
	reason := cause.Error()
	attempts := invoker.AttemptsOf(cause)
	c.logger.Error("session %s failed in %s after %d attempts: %s", sess.ID, sess.Phase, attempts, reason)

	if err := c.store.UpdateSession(ctx, sess.ID, session.Failure(reason, attempts)); err != nil {
		return session.ErrorOutcome(reason), fmt.Errorf("persist failure: %w", err)
	}

	c.applied(eventlog.Event{
		SessionID: sess.ID,
		From:      sess.Phase,
		To:        session.PhaseFailed,
		Kind:      session.KindError,
		Attempts:  attempts,
		Error:     reason,
	})
	return session.ErrorOutcome(reason), nil
}

func (c *Controller) applied(ev eventlog.Event) {
	c.recorder.ObserveTransition(string(ev.From), string(ev.To))
	if err := c.events.Record(ev); err != nil {
		c.logger.Warn("failed to record event for %s: %v", ev.SessionID, err)
	}
}

// Owned loads a session and checks it belongs to ownerID.
func (c *Controller) Owned(ctx context.Context, sessionID, ownerID string) (*session.Session, error) {
	sess, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers match session.ErrSessionNotFound
	}
	if sess.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: %s", ErrOwnerMismatch, sessionID)
	}
	return sess, nil
}

func kindFor(phase session.Phase) session.Kind {
	switch phase {
	case session.PhaseInit:
		return session.KindInit
	case session.PhaseClarifying:
		return session.KindClarifying
	case session.PhasePlanning:
		return session.KindPlanning
	case session.PhaseBuilding:
		return session.KindCoding
	case session.PhaseCompleted:
		return session.KindCompleted
	default:
		return session.KindError
	}
}

func payloadOf(tr session.Transition) any {
	switch {
	case tr.Artifact != nil:
		return tr.Artifact
	case tr.Plan != nil:
		return tr.Plan
	default:
		return tr.Clarification
	}
}
