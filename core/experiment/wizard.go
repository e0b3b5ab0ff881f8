package experiment

import (
	"fmt"

	"github.com/bob-rietveld/unheard-v2-sub001/core"
)

// Wizard steps, in order.
const (
	StepDetails  = "details"
	StepPersonas = "personas"
	StepPrompt   = "prompt"
)

var Steps = []string{StepDetails, StepPersonas, StepPrompt}

// Step is one page of the experiment creation wizard.
// Each step is validated on its own before the three are merged.
type Step interface {
	Clean()
}

type (
	Details struct {
		Name        string `json:"name" validate:"required,notblank,max=200"`
		Description string `json:"description" validate:"max=2000"`
	}

	PersonaSelection struct {
		PersonaIDs []string `json:"persona_ids" validate:"required,min=1,unique,dive,uuid"`
	}

	PromptStep struct {
		Prompt string `json:"prompt" validate:"required,notblank,max=5000"`
	}
)

var (
	_ Step = (*Details)(nil)
	_ Step = (*PersonaSelection)(nil)
	_ Step = (*PromptStep)(nil)
)

func (d *Details) Clean() {
	d.Name = core.CleanString(d.Name)
	d.Description = core.CleanString(d.Description)
}

func (ps *PersonaSelection) Clean() {
	ps.PersonaIDs = core.CleanStrings(ps.PersonaIDs, true /* lower */)
}

func (p *PromptStep) Clean() {
	p.Prompt = core.CleanString(p.Prompt)
}

// NewStep returns an empty Step for the named wizard step.
func NewStep(name string) (Step, error) {
	switch core.CleanString(name, true /* lower */) {
	case StepDetails:
		return new(Details), nil
	case StepPersonas:
		return new(PersonaSelection), nil
	case StepPrompt:
		return new(PromptStep), nil
	default:
		msg := fmt.Sprintf("unknown step %q; expected one of %v", name, Steps)
		return nil, core.NewValidationError(nil, core.FieldError{Field: "step", Error: msg})
	}
}

// Merge combines the three wizard steps into a single create payload.
func Merge(details Details, personas PersonaSelection, prompt PromptStep) NewExperiment {
	return NewExperiment{
		Details:          details,
		PersonaSelection: personas,
		PromptStep:       prompt,
		Status:           StatusDraft,
	}
}
