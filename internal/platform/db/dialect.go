package db

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/jmoiron/sqlx"
)

// Goqu returns a query builder speaking the placeholder/quoting style of the driver behind x.
func Goqu(x sqlx.ExtContext) goqu.DialectWrapper {
	return goqu.Dialect(goquDialect(x.DriverName()))
}

func goquDialect(driver string) string {
	switch driver {
	case DriverPostgres:
		return "postgres"
	case DriverSQLite:
		return "sqlite3"
	default:
		return "mysql"
	}
}

// Build renders a goqu dataset as a prepared statement.
func Build(ds interface {
	ToSQL() (string, []any, error)
}) (string, []any, error) {
	q, args, err := ds.ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("build query: %w", err)
	}
	return q, args, nil
}

// InsertReturningID runs an INSERT written with `?` placeholders and returns the new primary key.
// PostgreSQL has no LastInsertId, so the statement gets a RETURNING clause there.
func InsertReturningID(ctx context.Context, x DBTX, query string, args ...any) (int64, error) {
	if x.DriverName() == DriverPostgres {
		var id int64
		if err := x.QueryRowxContext(ctx, x.Rebind(query+" RETURNING id"), args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}
	res, err := x.ExecContext(ctx, x.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
