package experiment

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/bob-rietveld/unheard-v2-sub001/core"
	"github.com/bob-rietveld/unheard-v2-sub001/core/persona"
)

var (
	// errors
	ErrNotFound = errors.New("experiment not found")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		// CreateExperiment inserts the experiment and its persona memberships.
		CreateExperiment(ctx context.Context, exp Experiment, exec ...core.DBExecutor) (Experiment, error)
		// QueryExperiments applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of Experiment.Name or Experiment.Description.
		QueryExperiments(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Experiment, error)
		GetExperiment(ctx context.Context, id string, exec ...core.DBExecutor) (Experiment, error)
		UpdateExperiment(ctx context.Context, exp Experiment, exec ...core.DBExecutor) (Experiment, error)
		SetExperimentPersonas(ctx context.Context, id string, personaIDs []string, exec ...core.DBExecutor) error
		// DeleteExperiment removes the experiment and its persona memberships.
		DeleteExperiment(ctx context.Context, id string, exec ...core.DBExecutor) (int, error)
	}

	// ResponseStore is the part of the response storage experiments depend on.
	ResponseStore interface {
		DeleteResponsesByExperiment(ctx context.Context, experimentID string, exec ...core.DBExecutor) (int, error)
		SummarizeResponses(ctx context.Context, experimentID string, exec ...core.DBExecutor) (Summary, error)
	}

	PersonaStore interface {
		QueryByIDs(ctx context.Context, ids []string, exec ...core.DBExecutor) ([]persona.Persona, error)
	}

	Service struct {
		db        core.DB
		repo      Repository
		responses ResponseStore
		personas  PersonaStore
		validate  *validator.Validate
	}
)

func NewService(
	db core.DB,
	repo Repository,
	responses ResponseStore,
	personas PersonaStore,
	validate *validator.Validate,
) *Service {
	return &Service{
		db:        db,
		repo:      repo,
		responses: responses,
		personas:  personas,
		validate:  validate,
	}
}

// checkPersonas makes sure all ids reference existing personas.
func (svc *Service) checkPersonas(ctx context.Context, ids []string, exec ...core.DBExecutor) error {
	found, err := svc.personas.QueryByIDs(ctx, ids, exec...)
	if err != nil {
		return err
	}
	if len(found) == len(ids) {
		return nil
	}

	known := make(map[string]struct{}, len(found))
	for _, prs := range found {
		known[prs.ID] = struct{}{}
	}
	missing := make([]string, 0, len(ids)-len(found))
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			missing = append(missing, id)
		}
	}
	msg := "unknown personas: " + strings.Join(missing, ", ")
	return core.NewValidationError(errors.New(msg), core.FieldError{Field: "persona_ids", Error: msg})
}

// ValidateStep validates a single wizard step.
func (svc *Service) ValidateStep(ctx context.Context, step Step) error {
	step.Clean()
	if err := svc.validate.Struct(step); err != nil {
		return err
	}
	if ps, ok := step.(*PersonaSelection); ok {
		return svc.checkPersonas(ctx, ps.PersonaIDs)
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, ne NewExperiment) (Experiment, error) {
	if err := ne.Validate(svc.validate); err != nil {
		return Experiment{}, err
	}

	now := nowFunc().UTC()
	exp := Experiment{
		Name:        ne.Name,
		Description: ne.Description,
		Prompt:      ne.Prompt,
		Status:      StatusDraft,
		PersonaIDs:  sortedCopy(ne.PersonaIDs),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if ne.Status != "" {
		exp.setStatus(ne.Status, now)
	}

	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.checkPersonas(ctx, exp.PersonaIDs, tx); err != nil {
			return err
		}
		var err error
		exp, err = svc.repo.CreateExperiment(ctx, exp, tx)
		return err
	})
	if err != nil {
		return Experiment{}, err
	}
	return exp, nil
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Experiment, error) {
	if err := core.CheckOrdering(ordering, OrderingFields...); err != nil {
		return nil, err
	}
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryExperiments(ctx, filter, ordering)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Experiment, error) {
	return svc.repo.GetExperiment(ctx, core.CleanString(id, true /* lower */))
}

func (svc *Service) Update(ctx context.Context, id string, ue UpdateExperiment) (Experiment, error) {
	if err := ue.Validate(svc.validate); err != nil {
		return Experiment{}, err
	}

	var exp Experiment
	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		orig, err := svc.repo.GetExperiment(ctx, id, tx)
		if err != nil {
			return err
		}
		if ue.PersonaIDs != nil {
			if err = svc.checkPersonas(ctx, ue.PersonaIDs, tx); err != nil {
				return err
			}
		}

		exp = ue.apply(orig, nowFunc().UTC())
		if exp, err = svc.repo.UpdateExperiment(ctx, exp, tx); err != nil {
			return err
		}
		if ue.PersonaIDs != nil {
			return svc.repo.SetExperimentPersonas(ctx, exp.ID, exp.PersonaIDs, tx)
		}
		return nil
	})
	if err != nil {
		return Experiment{}, err
	}
	return exp, nil
}

// Complete marks the experiment as completed.
func (svc *Service) Complete(ctx context.Context, id string) (Experiment, error) {
	status := StatusCompleted
	return svc.Update(ctx, id, UpdateExperiment{Status: &status})
}

// Delete removes the experiment along with its responses and persona memberships.
func (svc *Service) Delete(ctx context.Context, id string) error {
	return core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if _, err := svc.repo.GetExperiment(ctx, id, tx); err != nil {
			return err
		}
		if _, err := svc.responses.DeleteResponsesByExperiment(ctx, id, tx); err != nil {
			return err
		}
		cnt, err := svc.repo.DeleteExperiment(ctx, id, tx)
		if err != nil {
			return err
		}
		if cnt == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// Personas returns the personas taking part in the experiment.
func (svc *Service) Personas(ctx context.Context, id string) ([]persona.Persona, error) {
	exp, err := svc.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return svc.personas.QueryByIDs(ctx, exp.PersonaIDs)
}

func (svc *Service) Summary(ctx context.Context, id string) (Summary, error) {
	exp, err := svc.GetByID(ctx, id)
	if err != nil {
		return Summary{}, err
	}
	summary, err := svc.responses.SummarizeResponses(ctx, exp.ID)
	if err != nil {
		return Summary{}, errors.Wrap(err, "summarizing responses")
	}
	summary.Personas = len(exp.PersonaIDs)
	return summary, nil
}
