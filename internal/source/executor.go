package source

import (
	"context"
	"database/sql"
)

// QueryExecutor runs read-only SELECT statements against the relational
// store. Rows are ordered scalar values aligned to the returned columns.
// The group-id literal is always bound as a parameter, never interpolated.
type QueryExecutor interface {
	Select(ctx context.Context, query string, args ...any) (columns []string, rows [][]any, err error)
}

// SQLExecutor adapts a database/sql handle to the QueryExecutor interface.
// The caller owns the connection; this type never writes to it.
type SQLExecutor struct {
	db *sql.DB
}

func NewSQLExecutor(db *sql.DB) *SQLExecutor {
	return &SQLExecutor{db: db}
}

func (e *SQLExecutor) Select(ctx context.Context, query string, args ...any) ([]string, [][]any, error) {
	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var out [][]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return columns, out, nil
}
