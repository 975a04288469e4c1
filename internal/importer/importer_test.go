package importer

import (
	"bytes"
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/leapstack-labs/sysmlsql/internal/schema"
	"github.com/leapstack-labs/sysmlsql/internal/stream"
	"github.com/leapstack-labs/sysmlsql/internal/testutil"
	"github.com/leapstack-labs/sysmlsql/pkg/core"
	"github.com/leapstack-labs/sysmlsql/pkg/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	idA = "00000000-0000-4000-8000-00000000000a"
	idB = "00000000-0000-4000-8000-00000000000b"
	idC = "00000000-0000-4000-8000-00000000000c"
	idD = "00000000-0000-4000-8000-00000000000d"
)

func setupStore(t *testing.T, schemaDoc string) *sql.DB {
	t.Helper()

	root, err := jsonschema.Parse(strings.NewReader(schemaDoc))
	require.NoError(t, err)
	res, err := schema.NewEngine(nil).Infer(root)
	require.NoError(t, err)

	db := testutil.OpenMemoryDB(t)
	_, err = db.ExecContext(context.Background(), res.DDL)
	require.NoError(t, err)
	return db
}

func runImport(t *testing.T, db *sql.DB, doc string, opts ...func(*Options)) (*Report, error) {
	t.Helper()
	o := Options{Logger: testutil.NewTestLogger(t)}
	for _, fn := range opts {
		fn(&o)
	}
	return New(o).Import(context.Background(), db, stream.Bytes(doc))
}

type snapshot map[string][][]string

func takeSnapshot(t *testing.T, db *sql.DB) snapshot {
	t.Helper()
	return snapshot{
		core.ElementsTable:           testutil.Dump(t, db, core.ElementsTable),
		core.RelationsTable:          testutil.Dump(t, db, core.RelationsTable),
		core.ExtendedPropertiesTable: testutil.Dump(t, db, core.ExtendedPropertiesTable),
	}
}

func TestImport_EndToEnd(t *testing.T) {
	db := setupStore(t, testutil.MinimalSchema)

	report, err := runImport(t, db, `[{"@id":"1","name":"root"},{"@id":"2","name":"child","owner":{"@id":"1"}}]`)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Elements)
	assert.Equal(t, 1, report.Relations)
	assert.Equal(t, 2, report.NonUUIDIDs)

	assert.Equal(t, [][]string{
		{"1", "root", "NULL"},
		{"2", "child", "NULL"},
	}, testutil.Dump(t, db, core.ElementsTable))
	assert.Equal(t, [][]string{{"owner", "2", "1"}}, testutil.Dump(t, db, core.RelationsTable))

	_, err = runImport(t, db, `[{"@id":"2","name":"child"}]`)
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"1", "root", "NULL"},
		{"2", "child", "NULL"},
	}, testutil.Dump(t, db, core.ElementsTable))
	assert.Empty(t, testutil.Dump(t, db, core.RelationsTable))
}

const richDoc = `[
  {"@id":"` + idA + `","@type":"Element","name":"a","isLibraryElement":true,"aliasIds":["x","y"],"ownedElement":[{"@id":"` + idB + `"},{"@id":"` + idC + `"}]},
  {"@id":"` + idB + `","@type":"LiteralInteger","name":"b","count":42,"weight":2.5,"value":7,"owner":{"@id":"` + idA + `"}},
  {"@id":"` + idC + `","@type":"Element","name":null,"isLibraryElement":"false","value":{"@id":"` + idB + `"},"owner":{"@id":"` + idA + `"}}
]`

func TestImport_Idempotent(t *testing.T) {
	db := setupStore(t, testutil.RichSchema)

	_, err := runImport(t, db, richDoc)
	require.NoError(t, err)
	first := takeSnapshot(t, db)

	report, err := runImport(t, db, richDoc)
	require.NoError(t, err)
	assert.Equal(t, first, takeSnapshot(t, db))
	assert.Equal(t, 3, report.Elements)
	assert.Equal(t, 5, report.Relations)
	assert.Equal(t, 2, report.ExtendedProperties)
}

func TestImport_Coercions(t *testing.T) {
	db := setupStore(t, testutil.RichSchema)

	report, err := runImport(t, db, richDoc)
	require.NoError(t, err)
	assert.True(t, report.Clean(), "%+v", report)
	assert.Zero(t, report.NonUUIDIDs)

	// @id, @type, count, declaredName, isLibraryElement, name, shortName, value, visibility, weight
	assert.Equal(t, [][]string{
		{idA, "Element", "NULL", "NULL", "1", "a", "NULL", "NULL", "NULL", "NULL"},
		{idB, "LiteralInteger", "42", "NULL", "NULL", "b", "NULL", "7", "NULL", "2.5"},
		{idC, "Element", "NULL", "NULL", "0", "NULL", "NULL", "NULL", "NULL", "NULL"},
	}, testutil.Dump(t, db, core.ElementsTable))

	assert.Equal(t, [][]string{
		{"ownedElement", idA, idB},
		{"ownedElement", idA, idC},
		{"owner", idB, idA},
		{"owner", idC, idA},
		{"value", idC, idB},
	}, testutil.Dump(t, db, core.RelationsTable))

	assert.Equal(t, [][]string{
		{idA, "x"},
		{idA, "y"},
	}, testutil.Dump(t, db, core.ExtendedPropertiesTable))

	assert.Equal(t, []string{"declaredName", "shortName", "visibility"}, report.UnusedColumns)
}

func TestImport_Supersession(t *testing.T) {
	db := setupStore(t, testutil.RichSchema)

	elements := `{"@id":"` + idB + `"},{"@id":"` + idC + `"},{"@id":"` + idD + `"}`
	_, err := runImport(t, db, `[`+elements+`,
		{"@id":"`+idA+`","aliasIds":["old"],"ownedElement":[{"@id":"`+idB+`"},{"@id":"`+idC+`"}]}]`)
	require.NoError(t, err)

	_, err = runImport(t, db, `[{"@id":"`+idA+`","aliasIds":["new"],"ownedElement":[{"@id":"`+idC+`"},{"@id":"`+idD+`"}]}]`)
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"ownedElement", idA, idC},
		{"ownedElement", idA, idD},
	}, testutil.Dump(t, db, core.RelationsTable))
	assert.Equal(t, [][]string{{idA, "new"}}, testutil.Dump(t, db, core.ExtendedPropertiesTable))
	assert.Len(t, testutil.Dump(t, db, core.ElementsTable), 4)
}

func TestImport_AtomicOnConstraintFailure(t *testing.T) {
	db := setupStore(t, testutil.RichSchema)
	_, err := runImport(t, db, richDoc)
	require.NoError(t, err)
	before := takeSnapshot(t, db)

	_, err = runImport(t, db, `[
		{"@id":"`+idA+`","name":"renamed"},
		{"@id":"`+idD+`","owner":{"@id":"00000000-0000-4000-8000-0000000000ff"}}
	]`)
	var ce *ConstraintError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "foreign key check", ce.Op)

	assert.Equal(t, before, takeSnapshot(t, db))

	// the connection is usable again afterwards
	_, err = runImport(t, db, richDoc)
	require.NoError(t, err)
}

func TestImport_UnknownRelationName(t *testing.T) {
	db := setupStore(t, testutil.MinimalSchema)

	_, err := runImport(t, db, `[{"@id":"1"},{"@id":"2","parent":{"@id":"1"}}]`)
	var ce *ConstraintError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Op, `relation "parent"`)
	assert.Contains(t, err.Error(), "CHECK constraint failed")
	assert.Empty(t, testutil.Dump(t, db, core.ElementsTable))
	assert.Empty(t, testutil.Dump(t, db, core.RelationsTable))
}

func TestImport_RepeatedEdge(t *testing.T) {
	db := setupStore(t, testutil.RichSchema)

	report, err := runImport(t, db, `[
		{"@id":"`+idB+`"},
		{"@id":"`+idA+`","ownedElement":[{"@id":"`+idB+`"},{"@id":"`+idB+`"}]}
	]`)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Relations)
	assert.Equal(t, [][]string{{"ownedElement", idA, idB}}, testutil.Dump(t, db, core.RelationsTable))
}

func TestImport_ReferenceInScalarColumn(t *testing.T) {
	db := setupStore(t, testutil.MinimalSchema)

	report, err := runImport(t, db, `[{"@id":"1","name":"root"},{"@id":"2","name":{"@id":"1"}}]`)
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"name": 1}, report.Violations)
	assert.Equal(t, []string{"name"}, report.UnexpectedPolymorphic)
	assert.Zero(t, report.Relations)
	assert.Equal(t, [][]string{
		{"1", "root", "NULL"},
		{"2", "NULL", "NULL"},
	}, testutil.Dump(t, db, core.ElementsTable))
	assert.Empty(t, testutil.Dump(t, db, core.RelationsTable))
}

func TestImport_PolymorphicValue(t *testing.T) {
	db := setupStore(t, testutil.MinimalSchema)

	report, err := runImport(t, db, `[{"@id":"1","value":3},{"@id":"2","value":{"@id":"1"}}]`)
	require.NoError(t, err)
	assert.True(t, report.Clean(), "%+v", report)
	assert.Equal(t, [][]string{{"value", "2", "1"}}, testutil.Dump(t, db, core.RelationsTable))
}

func TestImport_FlagLiterals(t *testing.T) {
	tests := []struct {
		value     string
		want      string
		violation bool
	}{
		{`"true"`, "1", false},
		{`"false"`, "0", false},
		{`true`, "1", false},
		{`"1"`, "NULL", true},
		{`"t"`, "NULL", true},
		{`"TRUE"`, "NULL", true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			db := setupStore(t, testutil.RichSchema)

			report, err := runImport(t, db, `[{"@id":"`+idA+`","isLibraryElement":`+tt.value+`}]`)
			require.NoError(t, err)

			var got sql.NullString
			require.NoError(t, db.QueryRowContext(context.Background(),
				`SELECT CAST("isLibraryElement" AS TEXT) FROM "elements"`).Scan(&got))
			if got.Valid {
				assert.Equal(t, tt.want, got.String)
			} else {
				assert.Equal(t, tt.want, "NULL")
			}
			assert.Equal(t, tt.violation, report.Violations["isLibraryElement"] == 1)
		})
	}
}

func TestImport_DisableForeignKeyChecks(t *testing.T) {
	db := setupStore(t, testutil.MinimalSchema)

	_, err := runImport(t, db, `[{"@id":"2","owner":{"@id":"missing"}}]`, func(o *Options) {
		o.DisableForeignKeyChecks = true
	})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"owner", "2", "missing"}}, testutil.Dump(t, db, core.RelationsTable))
}

func TestImport_Duplicates(t *testing.T) {
	t.Run("identical duplicates are skipped", func(t *testing.T) {
		db := setupStore(t, testutil.MinimalSchema)

		report, err := runImport(t, db, `[
			{"@id":"1","name":"root"},
			{"@id":"2","owner":{"@id":"1"}},
			{"owner":{"@id":"1"},"@id":"2"}
		]`)
		require.NoError(t, err)
		assert.Equal(t, 2, report.Elements)
		assert.Equal(t, 1, report.Duplicates)
		assert.Equal(t, 1, report.Relations)
	})

	t.Run("divergent duplicates are refused", func(t *testing.T) {
		db := setupStore(t, testutil.MinimalSchema)
		_, err := runImport(t, db, `[{"@id":"0","name":"keep"}]`)
		require.NoError(t, err)
		before := takeSnapshot(t, db)

		_, err = runImport(t, db, `[{"@id":"1","name":"a"},{"@id":"1","name":"b"}]`)
		var conflict *core.ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, "1", conflict.ID)
		assert.Equal(t, before, takeSnapshot(t, db))
	})
}

func TestImport_Diagnostics(t *testing.T) {
	db := setupStore(t, testutil.RichSchema)

	report, err := runImport(t, db, `[
		{"@id":"`+idA+`","declaredName":"plain","isLibraryElement":"maybe","tags":{"k":"v"}},
		{"@id":"`+idB+`","declaredName":{"nested":true},"aliasIds":["ok",3],"extra":1}
	]`)
	require.NoError(t, err)

	assert.False(t, report.Clean())
	assert.Equal(t, map[string]int{
		"aliasIds":         1,
		"declaredName":     1,
		"isLibraryElement": 1,
	}, report.Violations)
	assert.Equal(t, []string{"tags"}, report.UnexpectedComplex)
	assert.Equal(t, []string{"declaredName"}, report.UnexpectedPolymorphic)
	assert.Equal(t, []string{"extra", "tags"}, report.ProblematicAttributes)
	assert.Equal(t, 1, report.ExtendedProperties)

	var buf bytes.Buffer
	report.WriteSummary(&buf)
	out := buf.String()
	assert.Contains(t, out, "problematic attributes")
	assert.Contains(t, out, "violations: isLibraryElement")
	assert.Contains(t, out, "extra, tags")
}

func TestImport_SchemaMissing(t *testing.T) {
	db := testutil.OpenMemoryDB(t)
	_, err := runImport(t, db, `[]`)
	require.ErrorIs(t, err, ErrSchemaMissing)
}

func TestImport_MalformedDocument(t *testing.T) {
	db := setupStore(t, testutil.MinimalSchema)
	_, err := runImport(t, db, `[{"@id":"1"},{"@id":"2"},]`)
	require.ErrorIs(t, err, stream.ErrMalformedDocument)
	assert.Empty(t, testutil.Dump(t, db, core.ElementsTable))
}

func TestSameContent(t *testing.T) {
	a := []byte(`{"@id":"1","name":"a"}`)
	b := []byte(`{"@id":"1","name":"b"}`)

	assert.True(t, sameContent(7, 7, a, a))
	assert.False(t, sameContent(7, 8, a, a))
	assert.False(t, sameContent(7, 7, a, b), "equal fingerprints with different content")
}

func TestIsFlag(t *testing.T) {
	for name, want := range map[string]bool{
		"isAbstract":  true,
		"isÜber":      true,
		"is":          false,
		"island":      false,
		"isabstract":  false,
		"name":        false,
		"visibilityX": false,
	} {
		assert.Equal(t, want, isFlag(name), name)
	}
}
