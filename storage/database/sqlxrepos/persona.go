package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/bob-rietveld/unheard-v2-sub001/core"
	"github.com/bob-rietveld/unheard-v2-sub001/core/persona"
)

var personaColumns = []string{
	"id", "name", "age", "gender", "occupation", "location", "bio", "traits", "created_at", "updated_at",
}

type personaRow struct {
	ID         string    `db:"id"`
	Name       string    `db:"name"`
	Age        null.Int  `db:"age"`
	Gender     string    `db:"gender"`
	Occupation string    `db:"occupation"`
	Location   string    `db:"location"`
	Bio        string    `db:"bio"`
	Traits     string    `db:"traits"` // JSON array
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (row personaRow) values() []interface{} {
	return []interface{}{
		row.ID, row.Name, row.Age, row.Gender, row.Occupation, row.Location, row.Bio, row.Traits,
		row.CreatedAt, row.UpdatedAt,
	}
}

type personaRepository struct {
	repository
}

var _ persona.Repository = (*personaRepository)(nil) // interface compliance check

func NewPersonaRepository(exec core.DBExecutor) *personaRepository {
	return &personaRepository{repository{exec: exec}}
}

func (repo personaRepository) boil(prs persona.Persona) (personaRow, error) {
	traits := prs.Traits
	if traits == nil {
		traits = []string{}
	}
	data, err := json.Marshal(traits)
	if err != nil {
		return personaRow{}, errors.Wrap(err, "encoding traits")
	}
	return personaRow{
		ID:         prs.ID,
		Name:       prs.Name,
		Age:        null.IntFromPtr(prs.Age),
		Gender:     prs.Gender,
		Occupation: prs.Occupation,
		Location:   prs.Location,
		Bio:        prs.Bio,
		Traits:     string(data),
		CreatedAt:  prs.CreatedAt.UTC(),
		UpdatedAt:  prs.UpdatedAt.UTC(),
	}, nil
}

func (repo personaRepository) unboil(row personaRow) (persona.Persona, error) {
	traits := make([]string, 0)
	if row.Traits != "" {
		if err := json.Unmarshal([]byte(row.Traits), &traits); err != nil {
			return persona.Persona{}, errors.Wrap(err, "decoding traits")
		}
	}
	return persona.Persona{
		ID:         row.ID,
		Name:       row.Name,
		Age:        row.Age.Ptr(),
		Gender:     row.Gender,
		Occupation: row.Occupation,
		Location:   row.Location,
		Bio:        row.Bio,
		Traits:     traits,
		CreatedAt:  row.CreatedAt.UTC(),
		UpdatedAt:  row.UpdatedAt.UTC(),
	}, nil
}

func (repo personaRepository) unboilSlice(rows []personaRow) ([]persona.Persona, error) {
	personas := make([]persona.Persona, 0, len(rows))
	for _, row := range rows {
		prs, err := repo.unboil(row)
		if err != nil {
			return nil, err
		}
		personas = append(personas, prs)
	}
	return personas, nil
}

func (repo personaRepository) CreatePersona(ctx context.Context, prs persona.Persona, exec ...core.DBExecutor) (persona.Persona, error) {
	exe := repo.getExec(exec)
	prs.ID = uuid.New().String()
	row, err := repo.boil(prs)
	if err != nil {
		return persona.Persona{}, err
	}

	q, args, err := builder(exe).Insert(tablePersonas).Columns(personaColumns...).Values(row.values()...).ToSql()
	if err != nil {
		return persona.Persona{}, errors.Wrap(err, "building persona insert")
	}
	if _, err = exe.ExecContext(ctx, q, args...); err != nil {
		return persona.Persona{}, errors.Wrap(err, "inserting persona")
	}
	return repo.unboil(row)
}

func (repo personaRepository) QueryPersonas(
	ctx context.Context,
	filter *persona.QueryFilter,
	ordering []core.DBOrdering,
	exec ...core.DBExecutor,
) ([]persona.Persona, error) {
	exe := repo.getExec(exec)
	qb := builder(exe).Select(personaColumns...).From(tablePersonas)

	if filter != nil {
		// personas with Name, Occupation or Location matching the search keyword
		if filter.Search != "" {
			qb = qb.Where(sq.Or{
				containsLower("name", filter.Search),
				containsLower("occupation", filter.Search),
				containsLower("location", filter.Search),
			})
		}
		if filter.IDs != nil {
			qb = qb.Where(sq.Eq{"id": parseIDs(filter.IDs)})
		}
	}
	qb = qb.OrderBy(orderBy(ordering, core.DBOrdering{Field: "created_at"})...)

	q, args, err := qb.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building personas query")
	}
	var rows []personaRow
	if err = sqlx.SelectContext(ctx, exe, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying personas")
	}
	return repo.unboilSlice(rows)
}

func (repo personaRepository) GetPersona(ctx context.Context, id string, exec ...core.DBExecutor) (persona.Persona, error) {
	pid, ok := parseID(id)
	if !ok {
		return persona.Persona{}, persona.ErrNotFound
	}
	exe := repo.getExec(exec)

	q, args, err := builder(exe).Select(personaColumns...).From(tablePersonas).Where(sq.Eq{"id": pid}).ToSql()
	if err != nil {
		return persona.Persona{}, errors.Wrap(err, "building persona query")
	}
	var row personaRow
	if err = sqlx.GetContext(ctx, exe, &row, q, args...); err != nil {
		return persona.Persona{}, trapNoRowsErr(err, persona.ErrNotFound, "finding persona by ID")
	}
	return repo.unboil(row)
}

func (repo personaRepository) UpdatePersona(ctx context.Context, prs persona.Persona, exec ...core.DBExecutor) (persona.Persona, error) {
	exe := repo.getExec(exec)
	row, err := repo.boil(prs)
	if err != nil {
		return persona.Persona{}, err
	}

	q, args, err := builder(exe).Update(tablePersonas).
		SetMap(map[string]interface{}{
			"name":       row.Name,
			"age":        row.Age,
			"gender":     row.Gender,
			"occupation": row.Occupation,
			"location":   row.Location,
			"bio":        row.Bio,
			"traits":     row.Traits,
			"updated_at": row.UpdatedAt,
		}).
		Where(sq.Eq{"id": row.ID}).
		ToSql()
	if err != nil {
		return persona.Persona{}, errors.Wrap(err, "building persona update")
	}
	res, err := exe.ExecContext(ctx, q, args...)
	if err != nil {
		return persona.Persona{}, errors.Wrap(err, "updating persona")
	}
	if cnt, err := rowsAffected(res, "updating persona"); err != nil {
		return persona.Persona{}, err
	} else if cnt == 0 {
		return persona.Persona{}, persona.ErrNotFound
	}
	return repo.unboil(row)
}

func (repo personaRepository) DeletePersona(ctx context.Context, id string, exec ...core.DBExecutor) (int, error) {
	pid, ok := parseID(id)
	if !ok {
		return 0, nil
	}
	exe := repo.getExec(exec)
	b := builder(exe)

	deletes := []sq.DeleteBuilder{
		b.Delete(tableResponses).Where(sq.Eq{"persona_id": pid}),
		b.Delete(tableExperimentPersonas).Where(sq.Eq{"persona_id": pid}),
		b.Delete(tablePersonas).Where(sq.Eq{"id": pid}),
	}
	var cnt int
	for _, del := range deletes {
		q, args, err := del.ToSql()
		if err != nil {
			return 0, errors.Wrap(err, "building persona delete")
		}
		res, err := exe.ExecContext(ctx, q, args...)
		if err != nil {
			return 0, errors.Wrap(err, "deleting persona")
		}
		if cnt, err = rowsAffected(res, "deleting persona"); err != nil {
			return 0, err
		}
	}
	return cnt, nil
}
