package session

// Transition is a stage handler's successful result: the next phase plus the
// single payload field the stage produced.
type Transition struct {
	Next          Phase
	Clarification *Clarification
	Plan          *Plan
	Artifact      *Artifact
}

// Patch converts the transition into a store update.
func (t Transition) Patch() Patch {
	next := t.Next
	return Patch{
		Phase:         &next,
		Clarification: t.Clarification,
		Plan:          t.Plan,
		Artifact:      t.Artifact,
	}
}

// Kind is the outcome type reported to callers of Advance.
type Kind string

const (
	KindInit       Kind = "INIT"
	KindClarifying Kind = "CLARIFYING"
	KindPlanning   Kind = "PLANNING"
	KindCoding     Kind = "CODING"
	KindCompleted  Kind = "COMPLETED"
	KindError      Kind = "ERROR"
)

// Outcome is the transient result of one Advance call. Payload is a
// *Clarification, *Plan, *Artifact or string depending on Kind.
type Outcome struct {
	Kind    Kind `json:"type"`
	Payload any  `json:"data"`
}

// ErrorOutcome wraps a message in an ERROR outcome.
func ErrorOutcome(msg string) Outcome {
	return Outcome{Kind: KindError, Payload: msg}
}

// Message returns the payload as a string for ERROR outcomes.
func (o Outcome) Message() string {
	if s, ok := o.Payload.(string); ok {
		return s
	}
	return ""
}
