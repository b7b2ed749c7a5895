package stages

import (
	"context"
	"strings"

	"gameforge/pkg/invoker"
	"gameforge/pkg/llm"
	"gameforge/pkg/session"
	"gameforge/pkg/templates"
)

// Clarifier asks targeted questions until the requirements are sufficient.
type Clarifier struct {
	inv      *invoker.Invoker
	renderer *templates.Renderer
}

func (c *Clarifier) Phase() session.Phase {
	return session.PhaseClarifying
}

// Run clarifies the session's idea. Without a previous clarification the
// original prompt is analysed from scratch; otherwise msg answers the open
// questions, falling back to the original prompt when empty.
func (c *Clarifier) Run(ctx context.Context, sess *session.Session, msg string) (session.Transition, error) {
	if sess.Clarification == nil {
		clar, err := c.Clarify(ctx, sess.ID, sess.OriginalPrompt, nil)
		if err != nil {
			return session.Transition{}, err
		}
		return clarified(clar), nil
	}

	answer := msg
	if strings.TrimSpace(answer) == "" {
		answer = sess.OriginalPrompt
	}
	clar, err := c.Clarify(ctx, sess.ID, answer, sess.Clarification)
	if err != nil {
		return session.Transition{}, err
	}
	return clarified(clar), nil
}

// Clarify runs one clarification round. text is the idea on the first round
// and the user's answer on follow-ups.
func (c *Clarifier) Clarify(ctx context.Context, sessionID, text string, previous *session.Clarification) (*session.Clarification, error) {
	system, err := render(c.renderer, templates.ClarifierSystemTemplate, nil)
	if err != nil {
		return nil, err
	}

	var input string
	if previous == nil {
		input, err = render(c.renderer, templates.ClarifierInitialTemplate, &templates.TemplateData{Idea: text})
	} else {
		input, err = render(c.renderer, templates.ClarifierFollowupTemplate, &templates.TemplateData{Answer: text, Previous: previous})
	}
	if err != nil {
		return nil, err
	}

	return invoker.Invoke[session.Clarification](ctx, c.inv, invoker.Call{
		Instructions: system,
		Input:        input,
		Mode:         llm.ModeLowLatency,
		SessionID:    sessionID,
	})
}

// clarified moves to PLANNING when the requirements are sufficient and stays
// in CLARIFYING otherwise.
func clarified(clar *session.Clarification) session.Transition {
	next := session.PhaseClarifying
	if clar.IsSufficient {
		next = session.PhasePlanning
	}
	return session.Transition{Next: next, Clarification: clar}
}
