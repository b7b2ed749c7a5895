package session

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrSessionNotFound is returned when a session id is unknown.
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvariant is returned when phase and payload fields disagree.
	ErrInvariant = errors.New("session invariant violated")
)

// Session is the durable record of one request.
type Session struct {
	ID             string         `json:"id"`
	OwnerID        string         `json:"ownerId"`
	OriginalPrompt string         `json:"prompt"`
	Phase          Phase          `json:"status"`
	Clarification  *Clarification `json:"clarification"`
	Plan           *Plan          `json:"plan"`
	Artifact       *Artifact      `json:"code"`
	FailureReason  string         `json:"error,omitempty"`
	RetryCount     int            `json:"retries"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// CheckInvariant verifies that the phase agrees with the stored stage outputs.
func (s *Session) CheckInvariant() error {
	need := func(ok bool, what string) error {
		if ok {
			return nil
		}
		return fmt.Errorf("%w: phase %s without %s", ErrInvariant, s.Phase, what)
	}

	switch s.Phase {
	case PhaseInit:
		return nil
	case PhaseClarifying, PhasePlanning:
		return need(s.Clarification != nil, "clarification")
	case PhaseBuilding:
		if err := need(s.Clarification != nil, "clarification"); err != nil {
			return err
		}
		return need(s.Plan != nil, "plan")
	case PhaseCompleted:
		if err := need(s.Clarification != nil, "clarification"); err != nil {
			return err
		}
		if err := need(s.Plan != nil, "plan"); err != nil {
			return err
		}
		return need(s.Artifact != nil, "artifact")
	case PhaseFailed:
		return need(s.FailureReason != "", "failure reason")
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPhase, s.Phase)
	}
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Phase         *Phase
	Clarification *Clarification
	Plan          *Plan
	Artifact      *Artifact
	FailureReason *string
	RetryCount    *int
}

// Apply copies the set fields of p onto s.
func (p Patch) Apply(s *Session) {
	if p.Phase != nil {
		s.Phase = *p.Phase
	}
	if p.Clarification != nil {
		s.Clarification = p.Clarification
	}
	if p.Plan != nil {
		s.Plan = p.Plan
	}
	if p.Artifact != nil {
		s.Artifact = p.Artifact
	}
	if p.FailureReason != nil {
		s.FailureReason = *p.FailureReason
	}
	if p.RetryCount != nil {
		s.RetryCount = *p.RetryCount
	}
}

// Failure builds the patch that moves a session to FAILED.
func Failure(reason string, attempts int) Patch {
	phase := PhaseFailed
	return Patch{Phase: &phase, FailureReason: &reason, RetryCount: &attempts}
}

// Summary is the listing projection of a session.
type Summary struct {
	ID          string    `json:"id"`
	Prompt      string    `json:"prompt"`
	Phase       Phase     `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
}
