package session

import (
	"errors"
	"fmt"
	"strings"
)

// Clarification is the Clarifier stage output.
type Clarification struct {
	Questions    []string `json:"questions"`
	IsSufficient bool     `json:"isSufficient"`
	Summary      string   `json:"summary"`
	Confidence   float64  `json:"confidence"`
}

// Validate checks the clarification is usable.
func (c *Clarification) Validate() error {
	if c.Confidence < 0 || c.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0,1]", c.Confidence)
	}
	if c.Questions == nil {
		c.Questions = []string{}
	}
	return nil
}

// Framework selects the runtime the generated game targets.
type Framework string

const (
	// FrameworkVanilla is plain HTML, CSS and JavaScript on a canvas.
	FrameworkVanilla Framework = "vanilla"
	// FrameworkPhaser is Phaser 3 loaded from a CDN.
	FrameworkPhaser Framework = "phaser"
)

type Mechanic struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type Control struct {
	Input  string `json:"input"`
	Action string `json:"action"`
}

// Plan is the Planner stage output.
type Plan struct {
	Title               string     `json:"title"`
	Description         string     `json:"description"`
	Framework           Framework  `json:"framework"`
	Mechanics           []Mechanic `json:"mechanics"`
	Controls            []Control  `json:"controls"`
	Systems             []string   `json:"systems"`
	AssetDescriptions   []string   `json:"assetDescriptions"`
	GameLoopDescription string     `json:"gameLoopDescription"`
}

// Validate normalises the framework and rejects plans the Coder cannot use.
func (p *Plan) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return errors.New("plan has no title")
	}
	p.Framework = Framework(strings.ToLower(strings.TrimSpace(string(p.Framework))))
	switch p.Framework {
	case FrameworkVanilla, FrameworkPhaser:
	default:
		return fmt.Errorf("unsupported framework %q", p.Framework)
	}
	return nil
}

// File is one generated source file.
type File struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
	FileType string `json:"fileType"`
}

// Artifact is the Coder stage output.
type Artifact struct {
	Files      []File `json:"files"`
	EntryPoint string `json:"entryPoint"`
}

// Validate requires at least one named file and an entry point among them.
func (a *Artifact) Validate() error {
	if len(a.Files) == 0 {
		return errors.New("artifact has no files")
	}
	found := false
	for i, f := range a.Files {
		if strings.TrimSpace(f.Filename) == "" {
			return fmt.Errorf("artifact file %d has no filename", i)
		}
		if f.Filename == a.EntryPoint {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("entry point %q is not one of the generated files", a.EntryPoint)
	}
	return nil
}

// File returns the named file, if present.
func (a *Artifact) File(name string) (File, bool) {
	for _, f := range a.Files {
		if f.Filename == name {
			return f, true
		}
	}
	return File{}, false
}
