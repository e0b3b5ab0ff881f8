package response

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/bob-rietveld/unheard-v2-sub001/core"
)

// OrderingFields are the fields responses can be ordered by.
var OrderingFields = []string{"created_at", "updated_at", "sentiment", "sentiment_score"}

type Response struct {
	ID             string    `json:"id"`
	ExperimentID   string    `json:"experiment_id"`
	PersonaID      string    `json:"persona_id"`
	Content        string    `json:"content"`
	Sentiment      *string   `json:"sentiment"`
	SentimentScore *float64  `json:"sentiment_score"`
	CreatedAt      time.Time `json:"created_at"` // UTC
	UpdatedAt      time.Time `json:"updated_at"` // UTC
}

// NewResponse contains information needed to record a persona's Response to an experiment.
// ExperimentID is taken from the URL when posted through the API.
type NewResponse struct {
	ExperimentID   string   `json:"experiment_id" validate:"required,uuid"`
	PersonaID      string   `json:"persona_id" validate:"required,uuid"`
	Content        string   `json:"content" validate:"required,notblank,max=20000"`
	Sentiment      *string  `json:"sentiment" validate:"omitempty,sentiment"`
	SentimentScore *float64 `json:"sentiment_score" validate:"omitempty,gte=-1,lte=1"`
}

func (nr *NewResponse) Validate(validate *validator.Validate) error {
	nr.ExperimentID = core.CleanString(nr.ExperimentID, true /* lower */)
	nr.PersonaID = core.CleanString(nr.PersonaID, true /* lower */)
	nr.Content = core.CleanString(nr.Content)
	nr.Sentiment = cleanSentiment(nr.Sentiment)
	return validate.Struct(nr)
}

// UpdateResponse defines what information may be provided to modify an existing Response.
// ClearSentiment drops both the sentiment and its score.
type UpdateResponse struct {
	Content        *string  `json:"content" validate:"omitempty,notblank,max=20000"`
	Sentiment      *string  `json:"sentiment" validate:"omitempty,sentiment"`
	SentimentScore *float64 `json:"sentiment_score" validate:"omitempty,gte=-1,lte=1"`
	ClearSentiment bool     `json:"clear_sentiment"`
}

func (ur *UpdateResponse) Validate(validate *validator.Validate) error {
	if ur.Content != nil {
		content := core.CleanString(*ur.Content)
		ur.Content = &content
	}
	ur.Sentiment = cleanSentiment(ur.Sentiment)
	return validate.Struct(ur)
}

func (ur UpdateResponse) apply(resp Response, now time.Time) Response {
	if ur.Content != nil {
		resp.Content = *ur.Content
	}
	if ur.ClearSentiment {
		resp.Sentiment = nil
		resp.SentimentScore = nil
	} else {
		if ur.Sentiment != nil {
			sentiment := *ur.Sentiment
			resp.Sentiment = &sentiment
		}
		if ur.SentimentScore != nil {
			score := *ur.SentimentScore
			resp.SentimentScore = &score
		}
	}
	resp.UpdatedAt = now
	return resp
}

type QueryFilter struct {
	ExperimentID string   `query:"-"`
	PersonaID    string   `query:"-"`
	Sentiments   []string `query:"sentiment"`
}

func (qf *QueryFilter) Clean() {
	qf.ExperimentID = core.CleanString(qf.ExperimentID, true /* lower */)
	qf.PersonaID = core.CleanString(qf.PersonaID, true /* lower */)
	if qf.Sentiments = core.CleanStrings(qf.Sentiments, true /* lower */); len(qf.Sentiments) == 0 {
		qf.Sentiments = nil
	}
}

func cleanSentiment(s *string) *string {
	if s == nil {
		return nil
	}
	sentiment := core.CleanString(*s, true /* lower */)
	if sentiment == "" {
		return nil
	}
	return &sentiment
}
