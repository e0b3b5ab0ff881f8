package core

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

type (
	// DBExecutor is satisfied by both *sqlx.DB and *sqlx.Tx.
	DBExecutor interface {
		sqlx.ExtContext
	}

	DB interface {
		DBExecutor

		BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
		PingContext(ctx context.Context) error
	}
)

// WithTx runs fn inside a transaction which is committed when fn returns nil
// and rolled back otherwise.
func WithTx(ctx context.Context, db DB, fn func(tx DBExecutor) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = errors.Wrapf(err, "rolling back transaction: %v", rbErr)
			}
			return
		}
		err = errors.Wrap(tx.Commit(), "committing transaction")
	}()

	return fn(tx)
}

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// CheckOrdering makes sure every ordering field is one of `allowed`.
// Ordering fields end up verbatim in SQL.
func CheckOrdering(ordering []DBOrdering, allowed ...string) error {
	for _, ord := range ordering {
		var ok bool
		for _, field := range allowed {
			if ord.Field == field {
				ok = true
				break
			}
		}
		if !ok {
			return NewValidationError(
				fmt.Errorf("cannot order by %q", ord.Field),
				FieldError{Field: "ordering", Error: fmt.Sprintf("cannot order by %q", ord.Field)},
			)
		}
	}
	return nil
}
