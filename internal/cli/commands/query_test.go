package commands

import (
	"bytes"
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leapstack-labs/sysmlsql/internal/importer"
	"github.com/leapstack-labs/sysmlsql/internal/schema"
	"github.com/leapstack-labs/sysmlsql/internal/sqlite"
	"github.com/leapstack-labs/sysmlsql/internal/stream"
	"github.com/leapstack-labs/sysmlsql/internal/testutil"
	"github.com/leapstack-labs/sysmlsql/pkg/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const queryDoc = `[
  {"@id": "1", "@type": "Element", "name": "root", "owner": null, "aliasIds": ["r", "top"]},
  {"@id": "2", "@type": "Element", "name": "child", "owner": {"@id": "1"}, "ownedElement": [], "aliasIds": []},
  {"@id": "3", "@type": "LiteralInteger", "name": "three", "count": 3, "value": 3, "owner": {"@id": "1"}}
]`

// setupTestDB creates a database file from the rich fixture schema, imports
// a small model into it and returns it opened read-only.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sysml.db")

	root, err := jsonschema.Parse(strings.NewReader(testutil.RichSchema))
	require.NoError(t, err)
	res, err := schema.NewEngine(nil).Infer(root)
	require.NoError(t, err)

	store := sqlite.NewStore(testutil.NewTestLogger(t))
	require.NoError(t, store.Open(ctx, path))
	require.NoError(t, store.InitSchema(ctx, res.DDL))
	_, err = importer.New(importer.Options{}).Import(ctx, store.DB(), stream.Bytes(queryDoc))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	ro := sqlite.NewStore(nil)
	require.NoError(t, ro.OpenReadOnly(ctx, path))
	t.Cleanup(func() { _ = ro.Close() })
	return ro.DB()
}

func TestQueryCommand_Tables(t *testing.T) {
	db := setupTestDB(t)
	buf := new(bytes.Buffer)

	err := listTablesFromDB(context.Background(), buf, db, "md")
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "| elements | table |")
	assert.Contains(t, output, "| relations | table |")
	assert.Contains(t, output, "| extended_properties | table |")
}

func TestQueryCommand_Schema(t *testing.T) {
	db := setupTestDB(t)
	buf := new(bytes.Buffer)

	err := showSchemaFromDB(context.Background(), buf, db, "relations", "table")
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "Table: relations")
	assert.Contains(t, output, "origin_id")
	assert.Contains(t, output, "target_id")
	assert.Contains(t, output, "(primary key)")
	assert.Contains(t, output, "Indexes:")
}

func TestQueryCommand_SchemaNotFound(t *testing.T) {
	db := setupTestDB(t)

	err := showSchemaFromDB(context.Background(), new(bytes.Buffer), db, "nonexistent_table", "table")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestQueryCommand_SchemaJSON(t *testing.T) {
	db := setupTestDB(t)
	buf := new(bytes.Buffer)

	err := showSchemaFromDB(context.Background(), buf, db, "elements", "json")
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, `"name": "elements"`)
	assert.Contains(t, output, `"type": "table"`)
	assert.Contains(t, output, `"name": "@id"`)
	assert.Contains(t, output, `"pk": true`)
}

func TestQueryCommand_Formats(t *testing.T) {
	query := `SELECT "@id", name FROM elements ORDER BY "@id"`

	tests := []struct {
		format string
		want   []string
	}{
		{"table", []string{"root", "child", "three", "(3 rows)"}},
		{"json", []string{`"@id": "1"`, `"name": "root"`}},
		{"csv", []string{"@id,name\n1,root\n2,child\n3,three\n"}},
		{"md", []string{"| @id | name |", "| --- | --- |", "| 2 | child |"}},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			db := setupTestDB(t)
			buf := new(bytes.Buffer)
			require.NoError(t, executeAndRenderQuery(context.Background(), buf, db, query, tt.format))
			for _, want := range tt.want {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestQueryCommand_EmptyResults(t *testing.T) {
	db := setupTestDB(t)
	buf := new(bytes.Buffer)

	err := executeAndRenderQuery(context.Background(), buf, db, "SELECT * FROM elements WHERE 1=0", "table")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "(0 rows)")
}

func TestQueryCommand_InvalidSQL(t *testing.T) {
	db := setupTestDB(t)

	err := executeAndRenderQuery(context.Background(), new(bytes.Buffer), db, "SELEC nothing", "table")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query failed")
}

func TestQueryCommand_ReadOnly(t *testing.T) {
	db := setupTestDB(t)

	err := executeAndRenderQuery(context.Background(), new(bytes.Buffer), db, `DELETE FROM elements`, "table")
	require.Error(t, err)
}

func TestQueryCommand_ElementJSON(t *testing.T) {
	db := setupTestDB(t)
	buf := new(bytes.Buffer)

	require.NoError(t, showElementFromDB(context.Background(), buf, db, "1", "json"))

	output := buf.String()
	assert.Contains(t, output, `"@id": "1"`)
	assert.Contains(t, output, `"name": "name",`)
	assert.Contains(t, output, `"value": "root"`)
	assert.Contains(t, output, `"value": "top"`)
	assert.Contains(t, output, `"incoming": [`)
	assert.Contains(t, output, `"id": "2"`)
	assert.Contains(t, output, `"id": "3"`)
	assert.Contains(t, output, `"outgoing": null`)
}

func TestQueryCommand_ElementMarkdown(t *testing.T) {
	db := setupTestDB(t)
	buf := new(bytes.Buffer)

	require.NoError(t, showElementFromDB(context.Background(), buf, db, "3", "md"))

	output := buf.String()
	assert.Contains(t, output, "## Attributes")
	assert.Contains(t, output, "| count | 3 |")
	assert.Contains(t, output, "| value | 3 |")
	assert.Contains(t, output, "## Outgoing relations")
	assert.Contains(t, output, "| owner | 1 |")
	assert.Contains(t, output, "## Incoming relations\n\n(0 rows)")
}

func TestQueryCommand_ElementNotFound(t *testing.T) {
	db := setupTestDB(t)

	err := showElementFromDB(context.Background(), new(bytes.Buffer), db, "42", "table")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `element "42" not found`)
}

func TestNewQueryCommand(t *testing.T) {
	cmd := NewQueryCommand()
	assert.Equal(t, "query", cmd.Use[:5])
	assert.NotNil(t, cmd.RunE)

	// Check subcommands
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"tables", "schema", "element"}, names)
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		input    any
		expected string
	}{
		{nil, "NULL"},
		{"hello", "hello"},
		{42, "42"},
		{3.14, "3.14"},
		{true, "true"},
	}

	for _, tt := range tests {
		result := formatValue(tt.input)
		assert.Equal(t, tt.expected, result)
	}
}

func TestWriteCSV_Quoting(t *testing.T) {
	rs := &resultSet{
		cols: []string{"name", "value"},
		rows: [][]any{
			{"simple", nil},
			{"with,comma", `with"quote`},
			{"with\nnewline", int64(7)},
		},
	}
	buf := new(bytes.Buffer)
	require.NoError(t, writeCSV(buf, rs))
	assert.Equal(t, "name,value\nsimple,NULL\n\"with,comma\",\"with\"\"quote\"\n\"with\nnewline\",7\n", buf.String())
}

func TestWriteMarkdown_EscapesCells(t *testing.T) {
	rs := &resultSet{cols: []string{"expr"}, rows: [][]any{{"a|b"}, {"line\nbreak"}}}
	buf := new(bytes.Buffer)
	writeMarkdown(buf, rs)
	assert.Equal(t, "| expr |\n| --- |\n| a\\|b |\n| line<br>break |\n", buf.String())
}

func TestResultSet_JSONEmpty(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, writeResults(buf, &resultSet{cols: []string{"a"}}, "json"))
	assert.Equal(t, "[]\n", buf.String())
}

func TestQueryCommand_RelationsAndExtended(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	buf := new(bytes.Buffer)
	require.NoError(t, showRelationsFromDB(ctx, buf, db, "1", "md"))
	output := buf.String()
	assert.Contains(t, output, "## Outgoing relations\n\n(0 rows)")
	assert.Contains(t, output, "| name | origin |")
	assert.Contains(t, output, "| owner | 2 |")
	assert.Contains(t, output, "| owner | 3 |")
	assert.NotContains(t, output, "Attributes")

	buf.Reset()
	require.NoError(t, showExtendedFromDB(ctx, buf, db, "1", "json"))
	assert.Contains(t, buf.String(), `"@id": "1"`)
	assert.Contains(t, buf.String(), `"value": "r"`)
	assert.Contains(t, buf.String(), `"value": "top"`)

	err := showRelationsFromDB(ctx, new(bytes.Buffer), db, "42", "md")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `element "42" not found`)
}
