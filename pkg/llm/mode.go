package llm

import "fmt"

// Mode selects the sampling budget for a stage call.
type Mode string

const (
	// ModeLowLatency is used for clarification and planning.
	ModeLowLatency Mode = "LOW_LATENCY"
	// ModeHighEffort is used for code generation.
	ModeHighEffort Mode = "HIGH_EFFORT"
)

const (
	TemperatureLowLatency     = 0.4
	TemperatureHighEffort     = 0.2
	MaxOutputTokensLowLatency = 2048
	MaxOutputTokensHighEffort = 16000
)

// Params are the sampling parameters for a mode.
type Params struct {
	Temperature     float32
	MaxOutputTokens int
}

// ParamsFor returns the fixed sampling parameters for mode.
func ParamsFor(mode Mode) (Params, error) {
	switch mode {
	case ModeLowLatency:
		return Params{Temperature: TemperatureLowLatency, MaxOutputTokens: MaxOutputTokensLowLatency}, nil
	case ModeHighEffort:
		return Params{Temperature: TemperatureHighEffort, MaxOutputTokens: MaxOutputTokensHighEffort}, nil
	default:
		return Params{}, fmt.Errorf("unknown mode %q", mode)
	}
}

// Models names the model used for each mode.
type Models struct {
	Plan  string
	Build string
}

// For returns the model for mode.
func (m Models) For(mode Mode) string {
	if mode == ModeHighEffort {
		return m.Build
	}
	return m.Plan
}

// NewRequest assembles a JSON-forced request for mode.
func (m Models) NewRequest(mode Mode, system, input string) (CompletionRequest, error) {
	params, err := ParamsFor(mode)
	if err != nil {
		return CompletionRequest{}, err
	}
	return CompletionRequest{
		Model:              m.For(mode),
		SystemInstructions: system,
		UserInput:          input,
		MaxOutputTokens:    params.MaxOutputTokens,
		Temperature:        params.Temperature,
		ForceJSON:          true,
	}, nil
}
