package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/bob-rietveld/unheard-v2-sub001/core"
	"github.com/bob-rietveld/unheard-v2-sub001/core/experiment"
)

var experimentColumns = []string{
	"id", "name", "description", "prompt", "status", "created_at", "updated_at", "completed_at",
}

type experimentRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	Prompt      string    `db:"prompt"`
	Status      string    `db:"status"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
	CompletedAt null.Time `db:"completed_at"`
}

type membershipRow struct {
	ExperimentID string `db:"experiment_id"`
	PersonaID    string `db:"persona_id"`
}

type experimentRepository struct {
	repository
}

var _ experiment.Repository = (*experimentRepository)(nil) // interface compliance check

func NewExperimentRepository(exec core.DBExecutor) *experimentRepository {
	return &experimentRepository{repository{exec: exec}}
}

func (repo experimentRepository) boil(exp experiment.Experiment) experimentRow {
	row := experimentRow{
		ID:          exp.ID,
		Name:        exp.Name,
		Description: exp.Description,
		Prompt:      exp.Prompt,
		Status:      string(exp.Status),
		CreatedAt:   exp.CreatedAt.UTC(),
		UpdatedAt:   exp.UpdatedAt.UTC(),
	}
	if exp.CompletedAt != nil {
		row.CompletedAt = null.TimeFrom(exp.CompletedAt.UTC())
	}
	return row
}

func (repo experimentRepository) unboil(row experimentRow, personaIDs []string) experiment.Experiment {
	if personaIDs == nil {
		personaIDs = []string{}
	}
	exp := experiment.Experiment{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		Prompt:      row.Prompt,
		Status:      experiment.Status(row.Status),
		PersonaIDs:  personaIDs,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
	if row.CompletedAt.Valid {
		completedAt := row.CompletedAt.Time.UTC()
		exp.CompletedAt = &completedAt
	}
	return exp
}

// memberships returns the sorted persona ids of each experiment in ids.
func (repo experimentRepository) memberships(ctx context.Context, exe core.DBExecutor, ids []string) (map[string][]string, error) {
	members := make(map[string][]string, len(ids))
	if len(ids) == 0 {
		return members, nil
	}

	q, args, err := builder(exe).
		Select("experiment_id", "persona_id").
		From(tableExperimentPersonas).
		Where(sq.Eq{"experiment_id": ids}).
		OrderBy("experiment_id", "persona_id").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building memberships query")
	}
	var rows []membershipRow
	if err = sqlx.SelectContext(ctx, exe, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying memberships")
	}
	for _, row := range rows {
		members[row.ExperimentID] = append(members[row.ExperimentID], row.PersonaID)
	}
	return members, nil
}

func (repo experimentRepository) insertMemberships(ctx context.Context, exe core.DBExecutor, id string, personaIDs []string) error {
	if len(personaIDs) == 0 {
		return nil
	}
	ib := builder(exe).Insert(tableExperimentPersonas).Columns("experiment_id", "persona_id")
	for _, pid := range personaIDs {
		ib = ib.Values(id, pid)
	}
	q, args, err := ib.ToSql()
	if err != nil {
		return errors.Wrap(err, "building memberships insert")
	}
	if _, err = exe.ExecContext(ctx, q, args...); err != nil {
		return errors.Wrap(err, "inserting memberships")
	}
	return nil
}

func (repo experimentRepository) deleteMemberships(ctx context.Context, exe core.DBExecutor, id string) error {
	q, args, err := builder(exe).Delete(tableExperimentPersonas).Where(sq.Eq{"experiment_id": id}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building memberships delete")
	}
	if _, err = exe.ExecContext(ctx, q, args...); err != nil {
		return errors.Wrap(err, "deleting memberships")
	}
	return nil
}

// CreateExperiment is meant to be called within a transaction, which the
// caller provides through exec.
func (repo experimentRepository) CreateExperiment(
	ctx context.Context,
	exp experiment.Experiment,
	exec ...core.DBExecutor,
) (experiment.Experiment, error) {
	exe := repo.getExec(exec)
	exp.ID = uuid.New().String()
	row := repo.boil(exp)

	q, args, err := builder(exe).Insert(tableExperiments).
		Columns(experimentColumns...).
		Values(row.ID, row.Name, row.Description, row.Prompt, row.Status, row.CreatedAt, row.UpdatedAt, row.CompletedAt).
		ToSql()
	if err != nil {
		return experiment.Experiment{}, errors.Wrap(err, "building experiment insert")
	}
	if _, err = exe.ExecContext(ctx, q, args...); err != nil {
		return experiment.Experiment{}, errors.Wrap(err, "inserting experiment")
	}
	if err = repo.insertMemberships(ctx, exe, row.ID, exp.PersonaIDs); err != nil {
		return experiment.Experiment{}, err
	}
	return repo.unboil(row, exp.PersonaIDs), nil
}

func (repo experimentRepository) QueryExperiments(
	ctx context.Context,
	filter *experiment.QueryFilter,
	ordering []core.DBOrdering,
	exec ...core.DBExecutor,
) ([]experiment.Experiment, error) {
	exe := repo.getExec(exec)
	qb := builder(exe).Select(experimentColumns...).From(tableExperiments)

	if filter != nil {
		if filter.Search != "" {
			qb = qb.Where(sq.Or{
				containsLower("name", filter.Search),
				containsLower("description", filter.Search),
			})
		}
		if filter.Statuses != nil {
			statuses := make([]string, len(filter.Statuses))
			for i, s := range filter.Statuses {
				statuses[i] = string(s)
			}
			qb = qb.Where(sq.Eq{"status": statuses})
		}
	}
	qb = qb.OrderBy(orderBy(ordering, core.DBOrdering{Field: "created_at"})...)

	q, args, err := qb.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building experiments query")
	}
	var rows []experimentRow
	if err = sqlx.SelectContext(ctx, exe, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying experiments")
	}

	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	members, err := repo.memberships(ctx, exe, ids)
	if err != nil {
		return nil, err
	}

	experiments := make([]experiment.Experiment, 0, len(rows))
	for _, row := range rows {
		experiments = append(experiments, repo.unboil(row, members[row.ID]))
	}
	return experiments, nil
}

func (repo experimentRepository) GetExperiment(ctx context.Context, id string, exec ...core.DBExecutor) (experiment.Experiment, error) {
	eid, ok := parseID(id)
	if !ok {
		return experiment.Experiment{}, experiment.ErrNotFound
	}
	exe := repo.getExec(exec)

	q, args, err := builder(exe).Select(experimentColumns...).From(tableExperiments).Where(sq.Eq{"id": eid}).ToSql()
	if err != nil {
		return experiment.Experiment{}, errors.Wrap(err, "building experiment query")
	}
	var row experimentRow
	if err = sqlx.GetContext(ctx, exe, &row, q, args...); err != nil {
		return experiment.Experiment{}, trapNoRowsErr(err, experiment.ErrNotFound, "finding experiment by ID")
	}

	members, err := repo.memberships(ctx, exe, []string{row.ID})
	if err != nil {
		return experiment.Experiment{}, err
	}
	return repo.unboil(row, members[row.ID]), nil
}

// UpdateExperiment updates the experiment columns. Memberships are managed with SetExperimentPersonas.
func (repo experimentRepository) UpdateExperiment(
	ctx context.Context,
	exp experiment.Experiment,
	exec ...core.DBExecutor,
) (experiment.Experiment, error) {
	exe := repo.getExec(exec)
	row := repo.boil(exp)

	q, args, err := builder(exe).Update(tableExperiments).
		SetMap(map[string]interface{}{
			"name":         row.Name,
			"description":  row.Description,
			"prompt":       row.Prompt,
			"status":       row.Status,
			"updated_at":   row.UpdatedAt,
			"completed_at": row.CompletedAt,
		}).
		Where(sq.Eq{"id": row.ID}).
		ToSql()
	if err != nil {
		return experiment.Experiment{}, errors.Wrap(err, "building experiment update")
	}
	res, err := exe.ExecContext(ctx, q, args...)
	if err != nil {
		return experiment.Experiment{}, errors.Wrap(err, "updating experiment")
	}
	if cnt, err := rowsAffected(res, "updating experiment"); err != nil {
		return experiment.Experiment{}, err
	} else if cnt == 0 {
		return experiment.Experiment{}, experiment.ErrNotFound
	}
	return repo.unboil(row, exp.PersonaIDs), nil
}

// SetExperimentPersonas replaces the persona memberships of the experiment.
func (repo experimentRepository) SetExperimentPersonas(
	ctx context.Context,
	id string,
	personaIDs []string,
	exec ...core.DBExecutor,
) error {
	eid, ok := parseID(id)
	if !ok {
		return experiment.ErrNotFound
	}
	exe := repo.getExec(exec)
	if err := repo.deleteMemberships(ctx, exe, eid); err != nil {
		return err
	}
	return repo.insertMemberships(ctx, exe, eid, personaIDs)
}

func (repo experimentRepository) DeleteExperiment(ctx context.Context, id string, exec ...core.DBExecutor) (int, error) {
	eid, ok := parseID(id)
	if !ok {
		return 0, nil
	}
	exe := repo.getExec(exec)
	if err := repo.deleteMemberships(ctx, exe, eid); err != nil {
		return 0, err
	}

	q, args, err := builder(exe).Delete(tableExperiments).Where(sq.Eq{"id": eid}).ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building experiment delete")
	}
	res, err := exe.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting experiment")
	}
	return rowsAffected(res, "deleting experiment")
}
