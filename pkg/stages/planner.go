package stages

import (
	"context"
	"fmt"

	"gameforge/pkg/invoker"
	"gameforge/pkg/llm"
	"gameforge/pkg/session"
	"gameforge/pkg/templates"
)

// Planner turns clarified requirements into a game plan.
type Planner struct {
	inv      *invoker.Invoker
	renderer *templates.Renderer
}

func (p *Planner) Phase() session.Phase {
	return session.PhasePlanning
}

func (p *Planner) Run(ctx context.Context, sess *session.Session, _ string) (session.Transition, error) {
	if sess.Clarification == nil {
		return session.Transition{}, fmt.Errorf("%w: planning without a clarification", ErrMissingInput)
	}
	plan, err := p.Plan(ctx, sess.ID, sess.Clarification.Summary, sess.OriginalPrompt)
	if err != nil {
		return session.Transition{}, err
	}
	return session.Transition{Next: session.PhaseBuilding, Plan: plan}, nil
}

// Plan produces a plan for idea from the clarified requirements.
func (p *Planner) Plan(ctx context.Context, sessionID, requirements, idea string) (*session.Plan, error) {
	system, err := render(p.renderer, templates.PlannerSystemTemplate, nil)
	if err != nil {
		return nil, err
	}
	input, err := render(p.renderer, templates.PlannerInputTemplate, &templates.TemplateData{
		Idea:         idea,
		Requirements: requirements,
	})
	if err != nil {
		return nil, err
	}

	return invoker.Invoke[session.Plan](ctx, p.inv, invoker.Call{
		Instructions: system,
		Input:        input,
		Mode:         llm.ModeLowLatency,
		SessionID:    sessionID,
	})
}
