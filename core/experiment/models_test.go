package experiment

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bob-rietveld/unheard-v2-sub001/core"
)

func TestExperiment_setStatus(t *testing.T) {
	before := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	now := before.Add(time.Hour)

	tests := []struct {
		name            string
		from            Status
		completedAt     *time.Time
		to              Status
		wantCompletedAt *time.Time
	}{
		{name: "draft to running", from: StatusDraft, to: StatusRunning},
		{name: "running to completed", from: StatusRunning, to: StatusCompleted, wantCompletedAt: &now},
		{name: "draft to completed", from: StatusDraft, to: StatusCompleted, wantCompletedAt: &now},
		{name: "completed stays completed", from: StatusCompleted, completedAt: &before, to: StatusCompleted, wantCompletedAt: &before},
		{name: "reopen completed", from: StatusCompleted, completedAt: &before, to: StatusRunning},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp := Experiment{Status: tt.from, CompletedAt: tt.completedAt}
			exp.setStatus(tt.to, now)

			assert.Equal(t, tt.to, exp.Status)
			assert.Equal(t, tt.wantCompletedAt, exp.CompletedAt)
		})
	}
}

func TestNewStep(t *testing.T) {
	tests := []struct {
		name    string
		step    string
		want    Step
		wantErr bool
	}{
		{name: "details", step: "details", want: new(Details)},
		{name: "personas, mixed case", step: " Personas ", want: new(PersonaSelection)},
		{name: "prompt", step: "prompt", want: new(PromptStep)},
		{name: "unknown", step: "lol", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewStep(tt.step)
			if tt.wantErr {
				var verr *core.ValidationError
				require.True(t, errors.As(err, &verr), "NewStep() error = %v", err)
				require.Len(t, verr.Fields, 1)
				assert.Equal(t, "step", verr.Fields[0].Field)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, got)
		})
	}
}

func TestMerge(t *testing.T) {
	ne := Merge(
		Details{Name: " Coffee ", Description: "Taste test"},
		PersonaSelection{PersonaIDs: []string{"B", "a"}},
		PromptStep{Prompt: "Would you buy it?"},
	)
	validate, _ := core.NewValidator()
	_ = ne.Validate(validate)

	assert.Equal(t, StatusDraft, ne.Status)
	assert.Equal(t, "Coffee", ne.Name)
	assert.Equal(t, []string{"b", "a"}, ne.PersonaIDs)
	assert.Equal(t, "Would you buy it?", ne.Prompt)
}

func TestNewSummary(t *testing.T) {
	s := NewSummary("exp")

	assert.Equal(t, "exp", s.ExperimentID)
	assert.Len(t, s.Sentiments, len(Sentiments))
	for _, sentiment := range Sentiments {
		assert.Zero(t, s.Sentiments[sentiment])
	}
	assert.Nil(t, s.MeanSentimentScore)
}
