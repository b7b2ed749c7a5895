// Package session defines the request session record, its phases and stage payloads.
package session

import (
	"errors"
	"fmt"
)

// Phase is the session's position in the stage pipeline.
type Phase string

const (
	PhaseInit       Phase = "INIT"
	PhaseClarifying Phase = "CLARIFYING"
	PhasePlanning   Phase = "PLANNING"
	PhaseBuilding   Phase = "BUILDING"
	PhaseCompleted  Phase = "COMPLETED"
	PhaseFailed     Phase = "FAILED"
)

// ErrUnknownPhase is returned when a stored phase is not one of the known phases.
var ErrUnknownPhase = errors.New("unknown session phase")

// validTransitions defines the pipeline. Self-loops only exist for CLARIFYING.
//
//nolint:gochecknoglobals // state machine definition
var validTransitions = map[Phase][]Phase{
	PhaseInit: {
		PhaseClarifying,
		PhasePlanning, // requirements already sufficient after the first round
		PhaseFailed,
	},
	PhaseClarifying: {
		PhaseClarifying,
		PhasePlanning,
		PhaseFailed,
	},
	PhasePlanning: {
		PhaseBuilding,
		PhaseFailed,
	},
	PhaseBuilding: {
		PhaseCompleted,
		PhaseFailed,
	},
	PhaseCompleted: {},
	PhaseFailed:    {},
}

// AllPhases returns every known phase in pipeline order.
func AllPhases() []Phase {
	return []Phase{PhaseInit, PhaseClarifying, PhasePlanning, PhaseBuilding, PhaseCompleted, PhaseFailed}
}

// ParsePhase validates a stored phase string.
func ParsePhase(s string) (Phase, error) {
	p := Phase(s)
	if _, ok := validTransitions[p]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPhase, s)
	}
	return p, nil
}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	_, ok := validTransitions[p]
	return ok
}

// IsTerminal reports whether no further stage runs from p.
func (p Phase) IsTerminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// IsValidTransition checks if moving from one phase to another is allowed.
func IsValidTransition(from, to Phase) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ValidNextPhases returns the phases reachable from the given phase.
func ValidNextPhases(from Phase) []Phase {
	return validTransitions[from]
}
