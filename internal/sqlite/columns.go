package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// Querier is the subset of *sql.DB, *sql.Conn and *sql.Tx used for reads.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Column describes one column of a table as reported by PRAGMA table_info.
type Column struct {
	Name       string
	Type       string
	NotNull    bool
	PrimaryKey bool
}

// TableColumns returns the columns of table in declaration order. A missing
// table yields an empty slice.
func TableColumns(ctx context.Context, q Querier, table string) ([]Column, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", QuoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("failed to inspect table %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var columns []Column
	for rows.Next() {
		var (
			cid     int
			col     Column
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &col.Name, &col.Type, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s: %w", table, err)
		}
		col.NotNull = notNull == 1
		col.PrimaryKey = pk > 0
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to inspect table %s: %w", table, err)
	}
	return columns, nil
}
