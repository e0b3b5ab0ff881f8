package response

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/bob-rietveld/unheard-v2-sub001/core"
	"github.com/bob-rietveld/unheard-v2-sub001/core/experiment"
	"github.com/bob-rietveld/unheard-v2-sub001/core/persona"
)

var (
	// errors
	ErrNotFound = errors.New("response not found")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateResponse(ctx context.Context, resp Response, exec ...core.DBExecutor) (Response, error)
		// QueryResponses applies AND operation on available QueryFilter fields.
		QueryResponses(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Response, error)
		GetResponse(ctx context.Context, id string, exec ...core.DBExecutor) (Response, error)
		UpdateResponse(ctx context.Context, resp Response, exec ...core.DBExecutor) (Response, error)
		DeleteResponse(ctx context.Context, id string, exec ...core.DBExecutor) (int, error)
	}

	ExperimentGetter interface {
		GetByID(ctx context.Context, id string) (experiment.Experiment, error)
	}

	PersonaGetter interface {
		GetByID(ctx context.Context, id string) (persona.Persona, error)
	}

	Service struct {
		repo        Repository
		experiments ExperimentGetter
		personas    PersonaGetter
		validate    *validator.Validate
	}
)

func NewService(repo Repository, experiments ExperimentGetter, personas PersonaGetter, validate *validator.Validate) *Service {
	return &Service{
		repo:        repo,
		experiments: experiments,
		personas:    personas,
		validate:    validate,
	}
}

// Create records a response. The experiment and the persona must exist
// and the persona must take part in the experiment.
func (svc *Service) Create(ctx context.Context, nr NewResponse) (Response, error) {
	if err := nr.Validate(svc.validate); err != nil {
		return Response{}, err
	}

	exp, err := svc.experiments.GetByID(ctx, nr.ExperimentID)
	if err != nil {
		if errors.Cause(err) == experiment.ErrNotFound {
			return Response{}, core.NewValidationError(err, core.FieldError{Field: "experiment_id", Error: err.Error()})
		}
		return Response{}, errors.Wrap(err, "finding experiment by ID")
	}
	prs, err := svc.personas.GetByID(ctx, nr.PersonaID)
	if err != nil {
		if errors.Cause(err) == persona.ErrNotFound {
			return Response{}, core.NewValidationError(err, core.FieldError{Field: "persona_id", Error: err.Error()})
		}
		return Response{}, errors.Wrap(err, "finding persona by ID")
	}
	if !isMember(exp, prs.ID) {
		return Response{}, core.NewValidationError(
			errors.New(notMemberText),
			core.FieldError{Field: "persona_id", Error: notMemberText},
		)
	}

	now := nowFunc().UTC()
	resp := Response{
		ExperimentID:   exp.ID,
		PersonaID:      prs.ID,
		Content:        nr.Content,
		Sentiment:      nr.Sentiment,
		SentimentScore: nr.SentimentScore,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return svc.repo.CreateResponse(ctx, resp)
}

func (svc *Service) QueryByExperiment(ctx context.Context, experimentID string, filter *QueryFilter, ordering []core.DBOrdering) ([]Response, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	filter.ExperimentID = experimentID
	filter.PersonaID = ""
	return svc.query(ctx, filter, ordering)
}

func (svc *Service) QueryByPersona(ctx context.Context, personaID string, ordering []core.DBOrdering) ([]Response, error) {
	return svc.query(ctx, &QueryFilter{PersonaID: personaID}, ordering)
}

func (svc *Service) query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Response, error) {
	if err := core.CheckOrdering(ordering, OrderingFields...); err != nil {
		return nil, err
	}
	filter.Clean()
	return svc.repo.QueryResponses(ctx, filter, ordering)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Response, error) {
	return svc.repo.GetResponse(ctx, core.CleanString(id, true /* lower */))
}

func (svc *Service) Update(ctx context.Context, id string, ur UpdateResponse) (Response, error) {
	if err := ur.Validate(svc.validate); err != nil {
		return Response{}, err
	}
	orig, err := svc.GetByID(ctx, id)
	if err != nil {
		return Response{}, err
	}
	return svc.repo.UpdateResponse(ctx, ur.apply(orig, nowFunc().UTC()))
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	cnt, err := svc.repo.DeleteResponse(ctx, core.CleanString(id, true /* lower */))
	if err != nil {
		return err
	}
	if cnt == 0 {
		return ErrNotFound
	}
	return nil
}

func isMember(exp experiment.Experiment, personaID string) bool {
	for _, id := range exp.PersonaIDs {
		if id == personaID {
			return true
		}
	}
	return false
}
