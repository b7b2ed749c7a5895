// Package templates renders the stage prompts from embedded template files.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"gameforge/pkg/session"
)

//go:embed *.tpl.md
var templateFS embed.FS

// PhaserCDN is the script URL the Phaser coder prompt tells the model to load.
const PhaserCDN = "https://cdn.jsdelivr.net/npm/phaser@3/dist/phaser.min.js"

// TemplateData holds the data for template rendering.
type TemplateData struct {
	Idea         string                 `json:"idea,omitempty"`
	Answer       string                 `json:"answer,omitempty"`
	Previous     *session.Clarification `json:"previous,omitempty"`
	Requirements string                 `json:"requirements,omitempty"`
	Plan         *session.Plan          `json:"plan,omitempty"`
	PhaserCDN    string                 `json:"phaser_cdn,omitempty"`
}

// StageTemplate names one embedded prompt file.
type StageTemplate string

const (
	// ClarifierSystemTemplate is the clarifier's system instructions.
	ClarifierSystemTemplate StageTemplate = "clarifier_system.tpl.md"
	// ClarifierInitialTemplate is the first-round clarifier input.
	ClarifierInitialTemplate StageTemplate = "clarifier_initial.tpl.md"
	// ClarifierFollowupTemplate carries the previous round and the user's answer.
	ClarifierFollowupTemplate StageTemplate = "clarifier_followup.tpl.md"
	// PlannerSystemTemplate is the planner's system instructions.
	PlannerSystemTemplate StageTemplate = "planner_system.tpl.md"
	// PlannerInputTemplate is the planner input built from the clarified requirements.
	PlannerInputTemplate StageTemplate = "planner_input.tpl.md"
	// CoderVanillaTemplate is the coder system prompt for plain HTML/CSS/JS games.
	CoderVanillaTemplate StageTemplate = "coder_vanilla.tpl.md"
	// CoderPhaserTemplate is the coder system prompt for Phaser 3 games.
	CoderPhaserTemplate StageTemplate = "coder_phaser.tpl.md"
	// CoderInputTemplate is the coder input built from the plan.
	CoderInputTemplate StageTemplate = "coder_input.tpl.md"
)

// AllTemplates lists every embedded prompt.
func AllTemplates() []StageTemplate {
	return []StageTemplate{
		ClarifierSystemTemplate,
		ClarifierInitialTemplate,
		ClarifierFollowupTemplate,
		PlannerSystemTemplate,
		PlannerInputTemplate,
		CoderVanillaTemplate,
		CoderPhaserTemplate,
		CoderInputTemplate,
	}
}

// Renderer handles template rendering for stage prompts.
type Renderer struct {
	templates map[StageTemplate]*template.Template
}

// NewRenderer parses every embedded template.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{
		templates: make(map[StageTemplate]*template.Template),
	}

	for _, name := range AllTemplates() {
		content, err := templateFS.ReadFile(string(name))
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", name, err)
		}

		tmpl, err := template.New(string(name)).Option("missingkey=error").Funcs(template.FuncMap{
			"join": strings.Join,
		}).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}

		r.templates[name] = tmpl
	}

	return r, nil
}

// Render renders the specified template with the given data.
func (r *Renderer) Render(templateName StageTemplate, data *TemplateData) (string, error) {
	tmpl, exists := r.templates[templateName]
	if !exists {
		return "", fmt.Errorf("template %s not found", templateName)
	}
	if data == nil {
		data = &TemplateData{}
	}
	if data.PhaserCDN == "" {
		data.PhaserCDN = PhaserCDN
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", templateName, err)
	}

	return buf.String(), nil
}
