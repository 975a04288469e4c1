package testutil

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	// sqlite driver for test databases
	_ "modernc.org/sqlite"
)

// OpenMemoryDB opens a private in-memory SQLite database. The pool is pinned
// to a single connection since every connection would otherwise see its own
// empty database.
func OpenMemoryDB(t testing.TB) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.PingContext(context.Background()))
	return db
}

// Dump returns every row of table as strings, ordered by all columns, for
// comparing store states.
func Dump(t testing.TB, db *sql.DB, table string) [][]string {
	t.Helper()

	ctx := context.Background()
	colRows, err := db.QueryContext(ctx, `SELECT * FROM "`+table+`" LIMIT 0`)
	require.NoError(t, err)
	cols, err := colRows.Columns()
	require.NoError(t, err)
	require.NoError(t, colRows.Close())

	order := make([]string, len(cols))
	for i := range cols {
		order[i] = strconv.Itoa(i + 1)
	}
	rows, err := db.QueryContext(ctx, `SELECT * FROM "`+table+`" ORDER BY `+strings.Join(order, ", "))
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	var out [][]string
	for rows.Next() {
		values := make([]sql.NullString, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		require.NoError(t, rows.Scan(ptrs...))

		row := make([]string, len(cols))
		for i, v := range values {
			if v.Valid {
				row[i] = v.String
			} else {
				row[i] = "NULL"
			}
		}
		out = append(out, row)
	}
	require.NoError(t, rows.Err())
	return out
}
