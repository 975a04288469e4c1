package schema

import (
	"fmt"
	"slices"
	"strings"

	"github.com/leapstack-labs/sysmlsql/internal/sqlite"
	"github.com/leapstack-labs/sysmlsql/pkg/core"
)

// indexedElementColumns are looked up often enough to warrant an index.
// @id is left out as it is the primary key.
var indexedElementColumns = []string{
	"@type",
	"declaredName",
	"declaredShortName",
	"isLibraryElement",
	"name",
	"qualifiedName",
	"value",
}

// indexedRelationColumns; name is covered by the primary key.
var indexedRelationColumns = []string{
	core.RelationOriginColumn,
	core.RelationTargetColumn,
}

func createTable(name string, defs []string) string {
	lines := make([]string, len(defs))
	for i, d := range defs {
		lines[i] = "\t" + d
	}
	return fmt.Sprintf("CREATE TABLE %s (\n%s\n) STRICT;\n", sqlite.QuoteIdent(name), strings.Join(lines, ",\n"))
}

func createIndex(table, column string) string {
	index := sqlite.QuoteIdent(table + "." + column)
	return fmt.Sprintf("DROP INDEX IF EXISTS %s;\nCREATE INDEX %s ON %s(%s);\n\n",
		index, index, sqlite.QuoteIdent(table), sqlite.QuoteIdent(column))
}

func sortedNames(reprs map[string]Representation) []string {
	names := make([]string, 0, len(reprs))
	for name := range reprs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// RenderDDL renders the elements, relations and extended properties tables
// plus their indexes. Output is deterministic for a given mapping.
func RenderDDL(reprs map[string]Representation) (string, error) {
	if _, ok := reprs[core.IDProperty].(Column); !ok {
		return "", fmt.Errorf("%w: %q must be a column", ErrPrimaryKey, core.IDProperty)
	}

	elements := sqlite.QuoteIdent(core.ElementsTable)
	pk := sqlite.QuoteIdent(core.IDProperty)

	var (
		columnDefs    []string
		relationNames []string
		extendedDefs  = []string{pk + " TEXT NOT NULL"}
	)
	for _, name := range sortedNames(reprs) {
		switch r := reprs[name].(type) {
		case Column:
			def := []string{sqlite.QuoteIdent(name), r.Type}
			if name == core.IDProperty {
				def = append(def, "PRIMARY KEY")
			}
			// NOT NULL is not enforced: elements in the API data omit
			// non-nullable properties freely.
			if r.Unique {
				def = append(def, "UNIQUE")
			}
			if r.ForeignKey {
				def = append(def, "REFERENCES", elements, "("+pk+")")
			}
			columnDefs = append(columnDefs, strings.Join(def, " "))
		case RelationsTable:
			relationNames = append(relationNames, name)
		case ExtendedPropertiesTable:
			extendedDefs = append(extendedDefs, sqlite.QuoteIdent(name)+" TEXT")
		}
	}
	for _, name := range core.PolymorphicProperties() {
		if !slices.Contains(relationNames, name) {
			relationNames = append(relationNames, name)
		}
	}
	extendedDefs = append(extendedDefs,
		fmt.Sprintf("FOREIGN KEY(%s) REFERENCES %s(%s) DEFERRABLE INITIALLY DEFERRED", pk, elements, pk))

	literals := make([]string, len(relationNames))
	for i, name := range relationNames {
		literals[i] = sqlite.QuoteLiteral(name)
	}
	relationDefs := []string{
		fmt.Sprintf(`"name" TEXT NOT NULL CHECK("name" IN (%s))`, strings.Join(literals, ",\n\t\t")),
		`"origin_id" TEXT NOT NULL`,
		`"target_id" TEXT NOT NULL`,
		fmt.Sprintf(`FOREIGN KEY("origin_id") REFERENCES %s(%s) DEFERRABLE INITIALLY DEFERRED`, elements, pk),
		fmt.Sprintf(`FOREIGN KEY("target_id") REFERENCES %s(%s) DEFERRABLE INITIALLY DEFERRED`, elements, pk),
		`PRIMARY KEY("name","origin_id","target_id")`,
	}

	var b strings.Builder
	b.WriteString(createTable(core.ElementsTable, columnDefs))
	b.WriteString("\n\n")
	b.WriteString(createTable(core.RelationsTable, relationDefs))
	b.WriteString("\n\n")
	b.WriteString(createTable(core.ExtendedPropertiesTable, extendedDefs))
	b.WriteString("\n\n")

	for _, column := range indexedElementColumns {
		// an index on a column the schema does not declare would fail
		if _, ok := reprs[column].(Column); ok {
			b.WriteString(createIndex(core.ElementsTable, column))
		}
	}
	for _, column := range indexedRelationColumns {
		b.WriteString(createIndex(core.RelationsTable, column))
	}
	return b.String(), nil
}
