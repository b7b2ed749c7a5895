package stages

import (
	"context"
	"fmt"

	"gameforge/pkg/invoker"
	"gameforge/pkg/llm"
	"gameforge/pkg/session"
	"gameforge/pkg/templates"
)

// Coder generates the game files from a plan.
type Coder struct {
	inv      *invoker.Invoker
	renderer *templates.Renderer
}

func (c *Coder) Phase() session.Phase {
	return session.PhaseBuilding
}

func (c *Coder) Run(ctx context.Context, sess *session.Session, _ string) (session.Transition, error) {
	if sess.Plan == nil {
		return session.Transition{}, fmt.Errorf("%w: building without a plan", ErrMissingInput)
	}
	artifact, err := c.Build(ctx, sess.ID, sess.Plan)
	if err != nil {
		return session.Transition{}, err
	}
	return session.Transition{Next: session.PhaseCompleted, Artifact: artifact}, nil
}

// Build generates the artifact for plan.
func (c *Coder) Build(ctx context.Context, sessionID string, plan *session.Plan) (*session.Artifact, error) {
	system, err := render(c.renderer, SystemTemplateFor(plan.Framework), nil)
	if err != nil {
		return nil, err
	}
	input, err := render(c.renderer, templates.CoderInputTemplate, &templates.TemplateData{Plan: plan})
	if err != nil {
		return nil, err
	}

	return invoker.Invoke[session.Artifact](ctx, c.inv, invoker.Call{
		Instructions: system,
		Input:        input,
		Mode:         llm.ModeHighEffort,
		SessionID:    sessionID,
	})
}

// SystemTemplateFor selects the coder instructions. Anything other than
// vanilla gets the Phaser prompt.
func SystemTemplateFor(framework session.Framework) templates.StageTemplate {
	if framework == session.FrameworkVanilla {
		return templates.CoderVanillaTemplate
	}
	return templates.CoderPhaserTemplate
}
