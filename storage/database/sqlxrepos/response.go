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
	"github.com/bob-rietveld/unheard-v2-sub001/core/response"
)

var responseColumns = []string{
	"id", "experiment_id", "persona_id", "content", "sentiment", "sentiment_score", "created_at", "updated_at",
}

type responseRow struct {
	ID             string       `db:"id"`
	ExperimentID   string       `db:"experiment_id"`
	PersonaID      string       `db:"persona_id"`
	Content        string       `db:"content"`
	Sentiment      null.String  `db:"sentiment"`
	SentimentScore null.Float64 `db:"sentiment_score"`
	CreatedAt      time.Time    `db:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at"`
}

type responseRepository struct {
	repository
}

var (
	// interface compliance checks
	_ response.Repository      = (*responseRepository)(nil)
	_ experiment.ResponseStore = (*responseRepository)(nil)
)

func NewResponseRepository(exec core.DBExecutor) *responseRepository {
	return &responseRepository{repository{exec: exec}}
}

func (repo responseRepository) boil(resp response.Response) responseRow {
	return responseRow{
		ID:             resp.ID,
		ExperimentID:   resp.ExperimentID,
		PersonaID:      resp.PersonaID,
		Content:        resp.Content,
		Sentiment:      null.StringFromPtr(resp.Sentiment),
		SentimentScore: null.Float64FromPtr(resp.SentimentScore),
		CreatedAt:      resp.CreatedAt.UTC(),
		UpdatedAt:      resp.UpdatedAt.UTC(),
	}
}

func (repo responseRepository) unboil(row responseRow) response.Response {
	return response.Response{
		ID:             row.ID,
		ExperimentID:   row.ExperimentID,
		PersonaID:      row.PersonaID,
		Content:        row.Content,
		Sentiment:      row.Sentiment.Ptr(),
		SentimentScore: row.SentimentScore.Ptr(),
		CreatedAt:      row.CreatedAt.UTC(),
		UpdatedAt:      row.UpdatedAt.UTC(),
	}
}

func (repo responseRepository) CreateResponse(ctx context.Context, resp response.Response, exec ...core.DBExecutor) (response.Response, error) {
	exe := repo.getExec(exec)
	resp.ID = uuid.New().String()
	row := repo.boil(resp)

	q, args, err := builder(exe).Insert(tableResponses).
		Columns(responseColumns...).
		Values(row.ID, row.ExperimentID, row.PersonaID, row.Content, row.Sentiment, row.SentimentScore, row.CreatedAt, row.UpdatedAt).
		ToSql()
	if err != nil {
		return response.Response{}, errors.Wrap(err, "building response insert")
	}
	if _, err = exe.ExecContext(ctx, q, args...); err != nil {
		return response.Response{}, errors.Wrap(err, "inserting response")
	}
	return repo.unboil(row), nil
}

func (repo responseRepository) QueryResponses(
	ctx context.Context,
	filter *response.QueryFilter,
	ordering []core.DBOrdering,
	exec ...core.DBExecutor,
) ([]response.Response, error) {
	exe := repo.getExec(exec)
	qb := builder(exe).Select(responseColumns...).From(tableResponses)

	if filter != nil {
		if filter.ExperimentID != "" {
			qb = qb.Where(sq.Eq{"experiment_id": parseIDs([]string{filter.ExperimentID})})
		}
		if filter.PersonaID != "" {
			qb = qb.Where(sq.Eq{"persona_id": parseIDs([]string{filter.PersonaID})})
		}
		if filter.Sentiments != nil {
			qb = qb.Where(sq.Eq{"sentiment": filter.Sentiments})
		}
	}
	qb = qb.OrderBy(orderBy(ordering, core.DBOrdering{Field: "created_at"})...)

	q, args, err := qb.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building responses query")
	}
	var rows []responseRow
	if err = sqlx.SelectContext(ctx, exe, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying responses")
	}

	responses := make([]response.Response, 0, len(rows))
	for _, row := range rows {
		responses = append(responses, repo.unboil(row))
	}
	return responses, nil
}

func (repo responseRepository) GetResponse(ctx context.Context, id string, exec ...core.DBExecutor) (response.Response, error) {
	rid, ok := parseID(id)
	if !ok {
		return response.Response{}, response.ErrNotFound
	}
	exe := repo.getExec(exec)

	q, args, err := builder(exe).Select(responseColumns...).From(tableResponses).Where(sq.Eq{"id": rid}).ToSql()
	if err != nil {
		return response.Response{}, errors.Wrap(err, "building response query")
	}
	var row responseRow
	if err = sqlx.GetContext(ctx, exe, &row, q, args...); err != nil {
		return response.Response{}, trapNoRowsErr(err, response.ErrNotFound, "finding response by ID")
	}
	return repo.unboil(row), nil
}

func (repo responseRepository) UpdateResponse(ctx context.Context, resp response.Response, exec ...core.DBExecutor) (response.Response, error) {
	exe := repo.getExec(exec)
	row := repo.boil(resp)

	q, args, err := builder(exe).Update(tableResponses).
		SetMap(map[string]interface{}{
			"content":         row.Content,
			"sentiment":       row.Sentiment,
			"sentiment_score": row.SentimentScore,
			"updated_at":      row.UpdatedAt,
		}).
		Where(sq.Eq{"id": row.ID}).
		ToSql()
	if err != nil {
		return response.Response{}, errors.Wrap(err, "building response update")
	}
	res, err := exe.ExecContext(ctx, q, args...)
	if err != nil {
		return response.Response{}, errors.Wrap(err, "updating response")
	}
	if cnt, err := rowsAffected(res, "updating response"); err != nil {
		return response.Response{}, err
	} else if cnt == 0 {
		return response.Response{}, response.ErrNotFound
	}
	return repo.unboil(row), nil
}

func (repo responseRepository) DeleteResponse(ctx context.Context, id string, exec ...core.DBExecutor) (int, error) {
	rid, ok := parseID(id)
	if !ok {
		return 0, nil
	}
	exe := repo.getExec(exec)

	q, args, err := builder(exe).Delete(tableResponses).Where(sq.Eq{"id": rid}).ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building response delete")
	}
	res, err := exe.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting response")
	}
	return rowsAffected(res, "deleting response")
}

func (repo responseRepository) DeleteResponsesByExperiment(ctx context.Context, experimentID string, exec ...core.DBExecutor) (int, error) {
	eid, ok := parseID(experimentID)
	if !ok {
		return 0, nil
	}
	exe := repo.getExec(exec)

	q, args, err := builder(exe).Delete(tableResponses).Where(sq.Eq{"experiment_id": eid}).ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building responses delete")
	}
	res, err := exe.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting experiment responses")
	}
	return rowsAffected(res, "deleting experiment responses")
}

// SummarizeResponses counts the responses of an experiment per sentiment and averages their scores.
// Summary.Personas is left for the caller to fill.
func (repo responseRepository) SummarizeResponses(ctx context.Context, experimentID string, exec ...core.DBExecutor) (experiment.Summary, error) {
	summary := experiment.NewSummary(experimentID)
	eid, ok := parseID(experimentID)
	if !ok {
		return summary, nil
	}
	exe := repo.getExec(exec)
	b := builder(exe)

	q, args, err := b.
		Select("COUNT(*) AS responses", "COUNT(DISTINCT persona_id) AS responded", "AVG(sentiment_score) AS mean_score").
		From(tableResponses).
		Where(sq.Eq{"experiment_id": eid}).
		ToSql()
	if err != nil {
		return summary, errors.Wrap(err, "building summary query")
	}
	var totals struct {
		Responses int          `db:"responses"`
		Responded int          `db:"responded"`
		MeanScore null.Float64 `db:"mean_score"`
	}
	if err = sqlx.GetContext(ctx, exe, &totals, q, args...); err != nil {
		return summary, errors.Wrap(err, "querying response totals")
	}
	summary.Responses = totals.Responses
	summary.RespondedPersonas = totals.Responded
	summary.MeanSentimentScore = totals.MeanScore.Ptr()

	q, args, err = b.
		Select("sentiment", "COUNT(*) AS cnt").
		From(tableResponses).
		Where(sq.Eq{"experiment_id": eid}).
		Where(sq.NotEq{"sentiment": nil}).
		GroupBy("sentiment").
		ToSql()
	if err != nil {
		return summary, errors.Wrap(err, "building sentiments query")
	}
	var counts []struct {
		Sentiment string `db:"sentiment"`
		Count     int    `db:"cnt"`
	}
	if err = sqlx.SelectContext(ctx, exe, &counts, q, args...); err != nil {
		return summary, errors.Wrap(err, "querying sentiments")
	}
	for _, c := range counts {
		summary.Sentiments[c.Sentiment] = c.Count
	}
	return summary, nil
}
