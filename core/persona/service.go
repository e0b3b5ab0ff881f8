package persona

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/bob-rietveld/unheard-v2-sub001/core"
)

var (
	// errors
	ErrNotFound = errors.New("persona not found")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreatePersona(ctx context.Context, prs Persona, exec ...core.DBExecutor) (Persona, error)
		// QueryPersonas applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of Persona.Name, Persona.Occupation or Persona.Location.
		QueryPersonas(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Persona, error)
		GetPersona(ctx context.Context, id string, exec ...core.DBExecutor) (Persona, error)
		UpdatePersona(ctx context.Context, prs Persona, exec ...core.DBExecutor) (Persona, error)
		// DeletePersona also removes the persona's experiment memberships and responses.
		// It must run inside a transaction.
		DeletePersona(ctx context.Context, id string, exec ...core.DBExecutor) (int, error)
	}

	Service struct {
		db       core.DB
		repo     Repository
		validate *validator.Validate
	}
)

func NewService(db core.DB, repo Repository, validate *validator.Validate) *Service {
	return &Service{db: db, repo: repo, validate: validate}
}

func (svc *Service) Create(ctx context.Context, np NewPersona) (Persona, error) {
	if err := np.Validate(svc.validate); err != nil {
		return Persona{}, err
	}

	now := nowFunc().UTC()
	prs := Persona{
		Name:       np.Name,
		Age:        np.Age,
		Gender:     np.Gender,
		Occupation: np.Occupation,
		Location:   np.Location,
		Bio:        np.Bio,
		Traits:     np.Traits,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if prs.Traits == nil {
		prs.Traits = []string{}
	}
	return svc.repo.CreatePersona(ctx, prs)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Persona, error) {
	if err := core.CheckOrdering(ordering, OrderingFields...); err != nil {
		return nil, err
	}
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryPersonas(ctx, filter, ordering)
}

// QueryByIDs returns the personas with the given ids; unknown ids are ignored.
func (svc *Service) QueryByIDs(ctx context.Context, ids []string, exec ...core.DBExecutor) ([]Persona, error) {
	if len(ids) == 0 {
		return []Persona{}, nil
	}
	return svc.repo.QueryPersonas(ctx, &QueryFilter{IDs: ids}, []core.DBOrdering{{Field: "name", Ascending: true}}, exec...)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Persona, error) {
	return svc.repo.GetPersona(ctx, core.CleanString(id, true /* lower */))
}

func (svc *Service) Update(ctx context.Context, id string, up UpdatePersona) (Persona, error) {
	if err := up.Validate(svc.validate); err != nil {
		return Persona{}, err
	}

	var prs Persona
	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		orig, err := svc.repo.GetPersona(ctx, id, tx)
		if err != nil {
			return err
		}
		prs = up.apply(orig)
		prs.UpdatedAt = nowFunc().UTC()
		prs, err = svc.repo.UpdatePersona(ctx, prs, tx)
		return err
	})
	if err != nil {
		return Persona{}, err
	}
	return prs, nil
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		cnt, err := svc.repo.DeletePersona(ctx, id, tx)
		if err != nil {
			return err
		}
		if cnt == 0 {
			return ErrNotFound
		}
		return nil
	})
}
