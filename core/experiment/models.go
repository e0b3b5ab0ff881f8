package experiment

import (
	"sort"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/bob-rietveld/unheard-v2-sub001/core"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
)

// Sentiments
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
	SentimentMixed    = "mixed"
)

var (
	Statuses   = []Status{StatusDraft, StatusRunning, StatusCompleted}
	Sentiments = []string{SentimentPositive, SentimentNeutral, SentimentNegative, SentimentMixed}

	// OrderingFields are the fields experiments can be ordered by.
	OrderingFields = []string{"name", "status", "created_at", "updated_at", "completed_at"}
)

type Experiment struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Prompt      string     `json:"prompt"`
	Status      Status     `json:"status"`
	PersonaIDs  []string   `json:"persona_ids"`
	CreatedAt   time.Time  `json:"created_at"`   // UTC
	UpdatedAt   time.Time  `json:"updated_at"`   // UTC
	CompletedAt *time.Time `json:"completed_at"` // UTC
}

// setStatus moves the experiment to status `to`, maintaining CompletedAt:
// it is stamped when entering StatusCompleted, kept while staying there
// and cleared when leaving it.
func (exp *Experiment) setStatus(to Status, now time.Time) {
	switch {
	case to == StatusCompleted && exp.Status != StatusCompleted:
		completedAt := now
		exp.CompletedAt = &completedAt
	case to != StatusCompleted:
		exp.CompletedAt = nil
	}
	exp.Status = to
}

// Summary aggregates the responses collected by an experiment.
type Summary struct {
	ExperimentID       string         `json:"experiment_id"`
	Personas           int            `json:"personas"`
	RespondedPersonas  int            `json:"responded_personas"`
	Responses          int            `json:"responses"`
	Sentiments         map[string]int `json:"sentiments"`
	MeanSentimentScore *float64       `json:"mean_sentiment_score"`
}

// NewSummary returns an empty Summary with a zero count for every sentiment.
func NewSummary(experimentID string) Summary {
	sentiments := make(map[string]int, len(Sentiments))
	for _, s := range Sentiments {
		sentiments[s] = 0
	}
	return Summary{ExperimentID: experimentID, Sentiments: sentiments}
}

// NewExperiment contains information needed to create a new Experiment.
// It is the merge of the three wizard steps.
type NewExperiment struct {
	Details
	PersonaSelection
	PromptStep
	Status Status `json:"status" validate:"omitempty,oneof=draft running completed"`
}

func (ne *NewExperiment) Validate(validate *validator.Validate) error {
	ne.Details.Clean()
	ne.PersonaSelection.Clean()
	ne.PromptStep.Clean()
	ne.Status = Status(core.CleanString(string(ne.Status), true /* lower */))
	return validate.Struct(ne)
}

// UpdateExperiment defines what information may be provided to modify an existing Experiment.
// nil fields are left untouched; PersonaIDs replaces the whole membership set.
type UpdateExperiment struct {
	Name        *string  `json:"name" validate:"omitempty,notblank,max=200"`
	Description *string  `json:"description" validate:"omitempty,max=2000"`
	Prompt      *string  `json:"prompt" validate:"omitempty,notblank,max=5000"`
	Status      *Status  `json:"status" validate:"omitempty,oneof=draft running completed"`
	PersonaIDs  []string `json:"persona_ids" validate:"omitempty,min=1,unique,dive,uuid"`
}

func (ue *UpdateExperiment) Validate(validate *validator.Validate) error {
	for _, s := range []*string{ue.Name, ue.Description, ue.Prompt} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
	if ue.Status != nil {
		status := Status(core.CleanString(string(*ue.Status), true /* lower */))
		ue.Status = &status
	}
	if ue.PersonaIDs != nil {
		ue.PersonaIDs = core.CleanStrings(ue.PersonaIDs, true /* lower */)
	}
	return validate.Struct(ue)
}

func (ue UpdateExperiment) apply(exp Experiment, now time.Time) Experiment {
	if ue.Name != nil {
		exp.Name = *ue.Name
	}
	if ue.Description != nil {
		exp.Description = *ue.Description
	}
	if ue.Prompt != nil {
		exp.Prompt = *ue.Prompt
	}
	if ue.Status != nil {
		exp.setStatus(*ue.Status, now)
	}
	if ue.PersonaIDs != nil {
		exp.PersonaIDs = sortedCopy(ue.PersonaIDs)
	}
	exp.UpdatedAt = now
	return exp
}

type QueryFilter struct {
	Search   string   `query:"search"`
	Statuses []Status `query:"status"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	var statuses []Status
	for _, s := range qf.Statuses {
		if s = Status(core.CleanString(string(s), true /* lower */)); s != "" {
			statuses = append(statuses, s)
		}
	}
	qf.Statuses = statuses
}

func sortedCopy(ids []string) []string {
	cp := make([]string, len(ids))
	copy(cp, ids)
	sort.Strings(cp)
	return cp
}
