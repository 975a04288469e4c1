package commands

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/sysmlsql/internal/sqlite"
	"github.com/leapstack-labs/sysmlsql/pkg/core"
)

// resultSet is a fully read query result. Text values are strings.
type resultSet struct {
	cols []string
	rows [][]any
}

func readResultSet(rows *sql.Rows) (*resultSet, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	rs := &resultSet{cols: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		rs.rows = append(rs.rows, values)
	}
	return rs, rows.Err()
}

// records returns one column-keyed object per row.
func (rs *resultSet) records() []map[string]any {
	out := make([]map[string]any, len(rs.rows))
	for i, row := range rs.rows {
		rec := make(map[string]any, len(rs.cols))
		for j, col := range rs.cols {
			rec[col] = row[j]
		}
		out[i] = rec
	}
	return out
}

func (rs *resultSet) cells(row []any) []string {
	cells := make([]string, len(row))
	for i, v := range row {
		cells[i] = formatValue(v)
	}
	return cells
}

// writeResults renders rs as table, json, csv or md.
func writeResults(w io.Writer, rs *resultSet, format string) error {
	switch format {
	case "json":
		return writeJSON(w, rs.records())
	case "csv":
		return writeCSV(w, rs)
	case "md", "markdown":
		writeMarkdown(w, rs)
	default:
		writeTable(w, rs)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeTable(w io.Writer, rs *resultSet) {
	if len(rs.rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	header := make(table.Row, len(rs.cols))
	for i, col := range rs.cols {
		header[i] = col
	}
	t.AppendHeader(header)
	for _, row := range rs.rows {
		cells := rs.cells(row)
		tr := make(table.Row, len(cells))
		for i, c := range cells {
			tr[i] = c
		}
		t.AppendRow(tr)
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", len(rs.rows))
}

func writeCSV(w io.Writer, rs *resultSet) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(rs.cols); err != nil {
		return err
	}
	for _, row := range rs.rows {
		if err := cw.Write(rs.cells(row)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

var markdownCell = strings.NewReplacer("|", `\|`, "\r\n", "<br>", "\n", "<br>")

func markdownRow(cells []string) string {
	escaped := make([]string, len(cells))
	for i, c := range cells {
		escaped[i] = markdownCell.Replace(c)
	}
	return "| " + strings.Join(escaped, " | ") + " |"
}

func writeMarkdown(w io.Writer, rs *resultSet) {
	if len(rs.rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return
	}

	seps := make([]string, len(rs.cols))
	for i := range seps {
		seps[i] = "---"
	}
	_, _ = fmt.Fprintln(w, markdownRow(rs.cols))
	_, _ = fmt.Fprintln(w, markdownRow(seps))
	for _, row := range rs.rows {
		_, _ = fmt.Fprintln(w, markdownRow(rs.cells(row)))
	}
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}

func queryResultSet(ctx context.Context, db *sql.DB, query string, args ...any) (*resultSet, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return readResultSet(rows)
}

func listTablesFromDB(ctx context.Context, w io.Writer, db *sql.DB, format string) error {
	rs, err := queryResultSet(ctx, db, `
		SELECT name, type
		FROM sqlite_master
		WHERE type IN ('table', 'view')
		AND name NOT LIKE 'sqlite_%'
		ORDER BY type DESC, name
	`)
	if err != nil {
		return err
	}
	return writeResults(w, rs, format)
}

// columnInfo is one column of a table schema.
type columnInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable string `json:"nullable"`
	Key      string `json:"key"`
	PK       bool   `json:"pk"`
}

type schemaOutput struct {
	Name    string       `json:"name"`
	Type    string       `json:"type"`
	Columns []columnInfo `json:"columns"`
	Indexes []string     `json:"indexes,omitempty"`
}

func loadSchema(ctx context.Context, db *sql.DB, name string) (*schemaOutput, error) {
	cols, err := sqlite.TableColumns(ctx, db, name)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table or view '%s' not found", name)
	}

	out := &schemaOutput{Name: name, Type: "table", Columns: make([]columnInfo, len(cols))}
	for i, col := range cols {
		info := columnInfo{Name: col.Name, Type: col.Type, Nullable: "YES", PK: col.PrimaryKey}
		if col.NotNull {
			info.Nullable = "NO"
		}
		if col.PrimaryKey {
			info.Key = "(primary key)"
		}
		out.Columns[i] = info
	}

	if err := db.QueryRowContext(ctx,
		`SELECT type FROM sqlite_master WHERE name = ? AND type IN ('table', 'view')`, name).Scan(&out.Type); err != nil {
		out.Type = "table"
	}
	if out.Type != "table" {
		return out, nil
	}

	idx, err := queryResultSet(ctx, db,
		`SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = ? AND name NOT LIKE 'sqlite_%' ORDER BY name`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexes: %w", err)
	}
	for _, row := range idx.rows {
		out.Indexes = append(out.Indexes, formatValue(row[0]))
	}
	return out, nil
}

func showSchemaFromDB(ctx context.Context, w io.Writer, db *sql.DB, name, format string) error {
	s, err := loadSchema(ctx, db, name)
	if err != nil {
		return err
	}
	if format == "json" {
		return writeJSON(w, s)
	}

	title := "Table"
	if s.Type == "view" {
		title = "View"
	}
	_, _ = fmt.Fprintf(w, "%s: %s\n", title, s.Name)
	_, _ = fmt.Fprintln(w, strings.Repeat("-", 60))

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Column", "Type", "Nullable", "Key"})
	for _, col := range s.Columns {
		t.AppendRow(table.Row{col.Name, col.Type, col.Nullable, col.Key})
	}
	t.Render()

	if len(s.Indexes) > 0 {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, "Indexes:")
		for _, idx := range s.Indexes {
			_, _ = fmt.Fprintf(w, "  %s\n", idx)
		}
	}
	return nil
}

// elementAttribute is one non-NULL value of an element row or one extended
// property value.
type elementAttribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type elementRelation struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// elementView is an element row together with its extended properties and
// the relations on both of its ends.
type elementView struct {
	ID         string             `json:"@id"`
	Attributes []elementAttribute `json:"attributes,omitempty"`
	Extended   []elementAttribute `json:"extended_properties,omitempty"`
	Outgoing   []elementRelation  `json:"outgoing"`
	Incoming   []elementRelation  `json:"incoming"`
}

// nonNullAttributes flattens rs into its non-NULL cells, leaving out skip.
func nonNullAttributes(rs *resultSet, skip string) []elementAttribute {
	var attrs []elementAttribute
	for _, row := range rs.rows {
		for i, v := range row {
			if v != nil && rs.cols[i] != skip {
				attrs = append(attrs, elementAttribute{Name: rs.cols[i], Value: formatValue(v)})
			}
		}
	}
	return attrs
}

func queryRelations(ctx context.Context, db *sql.DB, otherEnd, thisEnd, id string) ([]elementRelation, error) {
	rs, err := queryResultSet(ctx, db, fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s = ? ORDER BY 1, 2",
		sqlite.QuoteIdent(core.RelationNameColumn),
		sqlite.QuoteIdent(otherEnd),
		sqlite.QuoteIdent(core.RelationsTable),
		sqlite.QuoteIdent(thisEnd)), id)
	if err != nil {
		return nil, fmt.Errorf("failed to query relations: %w", err)
	}
	var rels []elementRelation
	for _, row := range rs.rows {
		rels = append(rels, elementRelation{Name: formatValue(row[0]), ID: formatValue(row[1])})
	}
	return rels, nil
}

func loadElement(ctx context.Context, db *sql.DB, id string) (*elementView, error) {
	pk := sqlite.QuoteIdent(core.IDProperty)

	row, err := queryResultSet(ctx, db,
		fmt.Sprintf("SELECT * FROM %s WHERE %s = ?", sqlite.QuoteIdent(core.ElementsTable), pk), id)
	if err != nil {
		return nil, fmt.Errorf("failed to query element: %w", err)
	}
	if len(row.rows) == 0 {
		return nil, fmt.Errorf("element %q not found", id)
	}
	v := &elementView{ID: id, Attributes: nonNullAttributes(row, "")}

	ext, err := queryResultSet(ctx, db,
		fmt.Sprintf("SELECT * FROM %s WHERE %s = ? ORDER BY rowid", sqlite.QuoteIdent(core.ExtendedPropertiesTable), pk), id)
	if err != nil {
		return nil, fmt.Errorf("failed to query extended properties: %w", err)
	}
	v.Extended = nonNullAttributes(ext, core.IDProperty)

	if v.Outgoing, err = queryRelations(ctx, db, core.RelationTargetColumn, core.RelationOriginColumn, id); err != nil {
		return nil, err
	}
	if v.Incoming, err = queryRelations(ctx, db, core.RelationOriginColumn, core.RelationTargetColumn, id); err != nil {
		return nil, err
	}
	return v, nil
}

type section struct {
	title string
	rs    *resultSet
}

func attributeSection(title string, attrs []elementAttribute) section {
	rs := &resultSet{cols: []string{"name", "value"}}
	for _, a := range attrs {
		rs.rows = append(rs.rows, []any{a.Name, a.Value})
	}
	return section{title: title, rs: rs}
}

func relationSection(title, idColumn string, rels []elementRelation) section {
	rs := &resultSet{cols: []string{"name", idColumn}}
	for _, r := range rels {
		rs.rows = append(rs.rows, []any{r.Name, r.ID})
	}
	return section{title: title, rs: rs}
}

func (v *elementView) relationSections() []section {
	return []section{
		relationSection("Outgoing relations", "target", v.Outgoing),
		relationSection("Incoming relations", "origin", v.Incoming),
	}
}

func writeSections(w io.Writer, sections []section, format string) error {
	for i, sec := range sections {
		if i > 0 {
			_, _ = fmt.Fprintln(w)
		}
		switch format {
		case "md", "markdown":
			_, _ = fmt.Fprintf(w, "## %s\n\n", sec.title)
		case "csv":
			_, _ = fmt.Fprintf(w, "# %s\n", sec.title)
		default:
			_, _ = fmt.Fprintf(w, "%s:\n", sec.title)
		}
		if err := writeResults(w, sec.rs, format); err != nil {
			return err
		}
	}
	return nil
}

func showElementFromDB(ctx context.Context, w io.Writer, db *sql.DB, id, format string) error {
	v, err := loadElement(ctx, db, id)
	if err != nil {
		return err
	}
	if format == "json" {
		return writeJSON(w, v)
	}
	sections := append([]section{
		attributeSection("Attributes", v.Attributes),
		attributeSection("Extended properties", v.Extended),
	}, v.relationSections()...)
	return writeSections(w, sections, format)
}

// showRelationsFromDB prints the relations on both ends of an element.
func showRelationsFromDB(ctx context.Context, w io.Writer, db *sql.DB, id, format string) error {
	v, err := loadElement(ctx, db, id)
	if err != nil {
		return err
	}
	if format == "json" {
		return writeJSON(w, elementView{ID: v.ID, Outgoing: v.Outgoing, Incoming: v.Incoming})
	}
	return writeSections(w, v.relationSections(), format)
}

// showExtendedFromDB prints the extended properties of an element.
func showExtendedFromDB(ctx context.Context, w io.Writer, db *sql.DB, id, format string) error {
	v, err := loadElement(ctx, db, id)
	if err != nil {
		return err
	}
	if format == "json" {
		return writeJSON(w, map[string]any{"@id": v.ID, "extended_properties": v.Extended})
	}
	return writeSections(w, []section{attributeSection("Extended properties", v.Extended)}, format)
}
