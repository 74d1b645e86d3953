package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/thesisman/backend/core"
	"github.com/thesisman/backend/storage/database"
)

// conditions accumulates AND-ed WHERE clauses written with ? placeholders.
type conditions struct {
	clauses []string
	args    []interface{}
}

func (c *conditions) add(clause string, args ...interface{}) {
	c.clauses = append(c.clauses, clause)
	c.args = append(c.args, args...)
}

func (c conditions) where() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

// build expands slice arguments and rebinds the query to postgres placeholders.
// leadingArgs bind the placeholders written before the WHERE clause.
func (c conditions) build(query string, leadingArgs ...interface{}) (string, []interface{}, error) {
	q, args, err := sqlx.In(query, append(leadingArgs, c.args...)...)
	if err != nil {
		return "", nil, errors.Wrap(err, "building query")
	}
	return sqlx.Rebind(sqlx.DOLLAR, q), args, nil
}

type repo struct {
	db *sqlx.DB
}

func (r repo) getExec(ctx context.Context) sqlx.ExtContext {
	return database.GetExec(ctx, r.db)
}

// trapNoRowsErr maps "no rows" errors to notFound.
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// trapUniqueErr maps unique constraint violations to conflict.
func trapUniqueErr(err error, conflict string, msg string) error {
	if database.IsUniqueViolation(err) {
		return core.NewError(core.KindConflict, conflict)
	}
	return errors.Wrap(err, msg)
}
