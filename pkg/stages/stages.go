// Package stages implements the Clarifier, Planner and Coder stage handlers.
// Each handler builds its prompt, calls the invoker and returns the
// transition it wants applied; none of them touch the session store.
package stages

import (
	"context"
	"errors"
	"fmt"

	"gameforge/pkg/invoker"
	"gameforge/pkg/session"
	"gameforge/pkg/templates"
)

// ErrMissingInput is returned when a stage is dispatched without the session
// payload it depends on.
var ErrMissingInput = errors.New("stage input missing")

// Handler runs one pipeline phase for a session.
type Handler interface {
	// Phase is the session phase this handler serves.
	Phase() session.Phase
	// Run performs the stage. msg is the optional user message.
	Run(ctx context.Context, sess *session.Session, msg string) (session.Transition, error)
}

// Set bundles the three handlers sharing one invoker and renderer.
type Set struct {
	Clarifier *Clarifier
	Planner   *Planner
	Coder     *Coder
}

// NewSet creates all stage handlers.
func NewSet(inv *invoker.Invoker) (*Set, error) {
	renderer, err := templates.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("failed to load prompts: %w", err)
	}
	return &Set{
		Clarifier: &Clarifier{inv: inv, renderer: renderer},
		Planner:   &Planner{inv: inv, renderer: renderer},
		Coder:     &Coder{inv: inv, renderer: renderer},
	}, nil
}

// For returns the handler serving phase, if any. CLARIFYING and INIT share
// the Clarifier.
func (s *Set) For(phase session.Phase) (Handler, bool) {
	switch phase {
	case session.PhaseInit:
		return initClarifier{s.Clarifier}, true
	case session.PhaseClarifying:
		return s.Clarifier, true
	case session.PhasePlanning:
		return s.Planner, true
	case session.PhaseBuilding:
		return s.Coder, true
	default:
		return nil, false
	}
}

type initClarifier struct {
	*Clarifier
}

func (initClarifier) Phase() session.Phase {
	return session.PhaseInit
}

// Run always analyses the original prompt from scratch.
func (c initClarifier) Run(ctx context.Context, sess *session.Session, _ string) (session.Transition, error) {
	clar, err := c.Clarify(ctx, sess.ID, sess.OriginalPrompt, nil)
	if err != nil {
		return session.Transition{}, err
	}
	return clarified(clar), nil
}

func render(r *templates.Renderer, name templates.StageTemplate, data *templates.TemplateData) (string, error) {
	out, err := r.Render(name, data)
	if err != nil {
		return "", fmt.Errorf("prompt %s: %w", name, err)
	}
	return out, nil
}
