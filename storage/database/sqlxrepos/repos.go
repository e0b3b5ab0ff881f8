package sqlxrepos

import (
	"database/sql"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/bob-rietveld/unheard-v2-sub001/core"
)

const (
	tablePersonas           = "personas"
	tableExperiments        = "experiments"
	tableExperimentPersonas = "experiment_personas"
	tableResponses          = "responses"
)

type repository struct {
	exec core.DBExecutor
}

func (repo repository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

// builder returns a statement builder using the placeholders of the executor's driver.
func builder(exec core.DBExecutor) sq.StatementBuilderType {
	if exec.DriverName() == "postgres" {
		return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

// orderBy renders ordering, falling back to dflt. id is always the last key
// so that results are stable.
func orderBy(ordering []core.DBOrdering, dflt core.DBOrdering) []string {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{dflt}
	}
	orderList := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		orderList = append(orderList, ord.String())
	}
	return append(orderList, "id ASC")
}

// parseID returns the canonical form of a uuid, or false when id is not one.
func parseID(id string) (string, bool) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}

// parseIDs drops the ids which are not uuids.
func parseIDs(ids []string) []string {
	parsed := make([]string, 0, len(ids))
	for _, id := range ids {
		if pid, ok := parseID(id); ok {
			parsed = append(parsed, pid)
		}
	}
	return parsed
}

// trapNoRowsErr maps sql "no rows" err to notFound
func trapNoRowsErr(err, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func rowsAffected(res sql.Result, msg string) (int, error) {
	cnt, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, msg)
	}
	return int(cnt), nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// containsLower matches rows where LOWER(column) contains search literally.
func containsLower(column, search string) sq.Sqlizer {
	val := "%" + likeEscaper.Replace(strings.ToLower(search)) + "%"
	return sq.Expr("LOWER("+column+") LIKE ? ESCAPE '\\'", val)
}
