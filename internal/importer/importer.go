// Package importer synchronizes a relational store with a sequence of
// elements. An import upserts element rows, replaces the relations and
// extended properties of every imported element and either applies the whole
// batch or nothing.
package importer

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/leapstack-labs/sysmlsql/internal/progress"
	"github.com/leapstack-labs/sysmlsql/internal/sqlite"
	"github.com/leapstack-labs/sysmlsql/internal/stream"
	"github.com/leapstack-labs/sysmlsql/pkg/core"
)

// damageTable records the ids written by the current run together with a
// content fingerprint and canonical form. It lives in the connection's temp
// schema.
const damageTable = "inserted_elements"

// Options configures an Importer.
type Options struct {
	// DisableForeignKeyChecks imports without referential integrity checks.
	DisableForeignKeyChecks bool
	// ReportInterval is the minimum time between progress reports.
	ReportInterval time.Duration
	Logger         *slog.Logger
}

// Importer writes elements into an initialized store.
type Importer struct {
	opts   Options
	logger *slog.Logger
}

// New creates an importer.
func New(opts Options) *Importer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Importer{opts: opts, logger: logger}
}

// Import applies all elements of src to db in one transaction. src is
// traversed twice. On error the store is left unchanged.
func (im *Importer) Import(ctx context.Context, db *sql.DB, src stream.Source) (*Report, error) {
	start := time.Now()

	// PRAGMA foreign_keys is a no-op inside a transaction, so the connection
	// is pinned and configured first.
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	fk := "ON"
	if im.opts.DisableForeignKeyChecks {
		fk = "OFF"
		im.logger.Warn("foreign key checks are disabled")
	}
	im.logger.Debug("setting foreign key constraint support", "foreign_keys", fk)
	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = "+fk); err != nil {
		return nil, fmt.Errorf("failed to set foreign_keys: %w", err)
	}

	im.logger.Debug("starting db transaction for import")
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				im.logger.Error("failed to roll back import", "error", rbErr)
			}
		}
	}()

	r, err := im.newRun(ctx, tx)
	if err != nil {
		return nil, err
	}
	defer r.closeStatements()

	if err := r.insertElements(src); err != nil {
		return nil, err
	}
	if err := r.clearDamaged(); err != nil {
		return nil, err
	}
	if err := r.insertEdges(src); err != nil {
		return nil, err
	}

	if !im.opts.DisableForeignKeyChecks {
		if err := r.checkForeignKeys(); err != nil {
			return nil, err
		}
	}

	im.logger.Info("committing changes to db")
	r.closeStatements()
	if err := tx.Commit(); err != nil {
		// a COMMIT refused by SQLite leaves its transaction open
		_, _ = conn.ExecContext(context.WithoutCancel(ctx), "ROLLBACK")
		return nil, &ConstraintError{Op: "commit", Err: err}
	}
	committed = true

	report := r.report()
	report.Duration = time.Since(start)
	r.logDiagnostics(report)
	im.logger.Info("import finished", "elements", report.Elements, "relations", report.Relations, "took", report.Duration)
	return report, nil
}

// run holds the state of one import.
type run struct {
	ctx    context.Context
	tx     *sql.Tx
	opts   Options
	logger *slog.Logger

	elementColumns  []sqlite.Column
	columnNames     map[string]struct{}
	extendedColumns []string

	insertElement *sql.Stmt
	trackElement  *sql.Stmt
	lookupElement *sql.Stmt
	insertRelated *sql.Stmt
	insertExt     map[string]*sql.Stmt
	stmts         []*sql.Stmt

	// ordinals of repeated identical elements, skipped in the second pass
	skipped map[int]struct{}

	elements, duplicates, relations, extended int

	unusedColumns         map[string]struct{}
	observed              map[string]struct{}
	primitive             map[string]struct{}
	relational            map[string]struct{}
	unexpectedComplex     map[string]struct{}
	unexpectedPolymorphic map[string]struct{}
	violations            map[string]int
	nonUUID               int
	nonUUIDExamples       []string
}

func (im *Importer) newRun(ctx context.Context, tx *sql.Tx) (*run, error) {
	r := &run{
		ctx:                   ctx,
		tx:                    tx,
		opts:                  im.opts,
		logger:                im.logger,
		columnNames:           make(map[string]struct{}),
		insertExt:             make(map[string]*sql.Stmt),
		skipped:               make(map[int]struct{}),
		unusedColumns:         make(map[string]struct{}),
		observed:              make(map[string]struct{}),
		primitive:             make(map[string]struct{}),
		relational:            make(map[string]struct{}),
		unexpectedComplex:     make(map[string]struct{}),
		unexpectedPolymorphic: make(map[string]struct{}),
		violations:            make(map[string]int),
	}

	cols, err := sqlite.TableColumns(ctx, tx, core.ElementsTable)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, ErrSchemaMissing
	}
	if !slices.ContainsFunc(cols, func(c sqlite.Column) bool { return c.Name == core.IDProperty }) {
		return nil, fmt.Errorf("%w: elements table has no %q column", ErrSchemaMissing, core.IDProperty)
	}
	r.elementColumns = cols
	for _, c := range cols {
		r.unusedColumns[c.Name] = struct{}{}
		r.columnNames[c.Name] = struct{}{}
	}

	extCols, err := sqlite.TableColumns(ctx, tx, core.ExtendedPropertiesTable)
	if err != nil {
		return nil, err
	}
	for _, c := range extCols {
		if c.Name == core.IDProperty {
			continue
		}
		if !strings.EqualFold(c.Type, "TEXT") {
			return nil, fmt.Errorf("extended property column %q has unsupported type %q", c.Name, c.Type)
		}
		r.extendedColumns = append(r.extendedColumns, c.Name)
	}

	if err := r.prepare(); err != nil {
		r.closeStatements()
		return nil, err
	}
	return r, nil
}

func (r *run) prepareStmt(query string) (*sql.Stmt, error) {
	r.logger.Debug("preparing statement", "sql", query)
	stmt, err := r.tx.PrepareContext(r.ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare %q: %w", query, err)
	}
	r.stmts = append(r.stmts, stmt)
	return stmt, nil
}

func (r *run) prepare() error {
	damage := sqlite.QuoteIdent(damageTable)
	pk := sqlite.QuoteIdent(core.IDProperty)

	if _, err := r.tx.ExecContext(r.ctx, fmt.Sprintf(
		`CREATE TEMPORARY TABLE %s(%s TEXT PRIMARY KEY, "fingerprint" INTEGER NOT NULL, "canonical" BLOB NOT NULL)`, damage, pk)); err != nil {
		return fmt.Errorf("failed to create damage tracking table: %w", err)
	}

	names := make([]string, len(r.elementColumns))
	for i, c := range r.elementColumns {
		names[i] = sqlite.QuoteIdent(c.Name)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")

	var err error
	if r.insertElement, err = r.prepareStmt(fmt.Sprintf("INSERT OR REPLACE INTO %s(%s) VALUES (%s)",
		sqlite.QuoteIdent(core.ElementsTable), strings.Join(names, ", "), placeholders)); err != nil {
		return err
	}
	if r.trackElement, err = r.prepareStmt(fmt.Sprintf(`INSERT INTO %s(%s, "fingerprint", "canonical") VALUES (?, ?, ?)`, damage, pk)); err != nil {
		return err
	}
	if r.lookupElement, err = r.prepareStmt(fmt.Sprintf(`SELECT "fingerprint", "canonical" FROM %s WHERE %s = ?`, damage, pk)); err != nil {
		return err
	}
	// identical edges asserted twice by one element collapse into one row,
	// CHECK failures still abort
	if r.insertRelated, err = r.prepareStmt(fmt.Sprintf("INSERT INTO %s(%s, %s, %s) VALUES (?, ?, ?) ON CONFLICT DO NOTHING",
		sqlite.QuoteIdent(core.RelationsTable),
		sqlite.QuoteIdent(core.RelationNameColumn),
		sqlite.QuoteIdent(core.RelationOriginColumn),
		sqlite.QuoteIdent(core.RelationTargetColumn))); err != nil {
		return err
	}
	for _, col := range r.extendedColumns {
		stmt, err := r.prepareStmt(fmt.Sprintf("INSERT INTO %s(%s, %s) VALUES (?, ?)",
			sqlite.QuoteIdent(core.ExtendedPropertiesTable), pk, sqlite.QuoteIdent(col)))
		if err != nil {
			return err
		}
		r.insertExt[col] = stmt
	}
	return nil
}

func (r *run) closeStatements() {
	for _, stmt := range r.stmts {
		_ = stmt.Close()
	}
	r.stmts = nil
}

func fingerprint(canonical []byte) int64 {
	return int64(xxhash.Sum64(canonical))
}

// sameContent reports whether a repeated element matches the recorded one.
// Equal fingerprints are confirmed on the canonical bytes.
func sameContent(fp, seenFP int64, canonical, seen []byte) bool {
	return fp == seenFP && bytes.Equal(canonical, seen)
}

// insertElements is the first pass: one upserted row per element.
func (r *run) insertElements(src stream.Source) error {
	r.logger.Info("inserting elements")
	rep := progress.New(r.logger, "element", r.opts.ReportInterval)

	row := make([]any, len(r.elementColumns))
	var canonical []byte
	ordinal := -1
	for e, err := range src.Pass() {
		if err != nil {
			return fmt.Errorf("failed to read elements: %w", err)
		}
		ordinal++

		canonical = core.AppendCanonicalElement(canonical[:0], e)
		fp := fingerprint(canonical)
		var (
			seenFP int64
			seen   []byte
		)
		switch err := r.lookupElement.QueryRowContext(r.ctx, e.ID).Scan(&seenFP, &seen); {
		case err == nil:
			if !sameContent(fp, seenFP, canonical, seen) {
				return &core.ConflictError{ID: e.ID}
			}
			r.logger.Debug("skipping repeated element", "id", e.ID)
			r.skipped[ordinal] = struct{}{}
			r.duplicates++
			continue
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("failed to look up element %q: %w", e.ID, err)
		}

		if _, err := uuid.Parse(e.ID); err != nil {
			r.nonUUID++
			if len(r.nonUUIDExamples) < maxExamples {
				r.nonUUIDExamples = append(r.nonUUIDExamples, e.ID)
			}
		}

		for i, col := range r.elementColumns {
			row[i] = r.columnValue(e, col)
		}
		if _, err := r.insertElement.ExecContext(r.ctx, row...); err != nil {
			return &ConstraintError{Op: fmt.Sprintf("insert of element %q", e.ID), Err: err}
		}
		if _, err := r.trackElement.ExecContext(r.ctx, e.ID, fp, canonical); err != nil {
			return fmt.Errorf("failed to track element %q: %w", e.ID, err)
		}

		r.elements++
		rep.Tick(r.elements)
	}
	rep.Done(r.elements)
	return nil
}

// isFlag matches boolean flag names such as isAbstract.
func isFlag(name string) bool {
	rest, ok := strings.CutPrefix(name, "is")
	if !ok {
		return false
	}
	c, _ := utf8.DecodeRuneInString(rest)
	return unicode.IsUpper(c)
}

// parseFlag accepts the two JSON boolean literals only.
func parseFlag(s string) (value, ok bool) {
	switch s {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

// columnValue converts the attribute stored in col to a driver value.
func (r *run) columnValue(e core.Element, col sqlite.Column) any {
	v, ok := e.Attributes.Get(col.Name)
	if !ok {
		return nil
	}
	delete(r.unusedColumns, col.Name)

	switch x := v.(type) {
	case core.Null:
		return nil
	case core.Bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case core.String:
		if !isFlag(col.Name) {
			return string(x)
		}
		b, ok := parseFlag(string(x))
		if !ok {
			r.violation(col.Name, "flag is not a boolean, setting it to NULL", "id", e.ID, "value", string(x))
			return nil
		}
		if b {
			return int64(1)
		}
		return int64(0)
	case core.Number:
		if i, ok := x.Int64(); ok {
			return i
		}
		return x.Float64()
	default:
		if !core.IsPolymorphic(col.Name) {
			r.violation(col.Name, "column expects a scalar, setting it to NULL", "id", e.ID, "type", col.Type)
		}
		return nil
	}
}

func (r *run) violation(attribute, msg string, args ...any) {
	r.violations[attribute]++
	r.logger.Warn(msg, append([]any{"attribute", attribute}, args...)...)
}

// clearDamaged removes the edges of every element written in the first pass
// so the second pass leaves exactly the asserted ones.
func (r *run) clearDamaged() error {
	r.logger.Debug("removing relations and extended properties of inserted elements")

	damage := sqlite.QuoteIdent(damageTable)
	pk := sqlite.QuoteIdent(core.IDProperty)
	stmts := []string{
		fmt.Sprintf("DELETE FROM %s WHERE %s IN (SELECT %s FROM %s)",
			sqlite.QuoteIdent(core.RelationsTable), sqlite.QuoteIdent(core.RelationOriginColumn), pk, damage),
		fmt.Sprintf("DELETE FROM %s WHERE %s IN (SELECT %s FROM %s)",
			sqlite.QuoteIdent(core.ExtendedPropertiesTable), pk, pk, damage),
	}
	for _, stmt := range stmts {
		if _, err := r.tx.ExecContext(r.ctx, stmt); err != nil {
			return fmt.Errorf("failed to remove obsolete rows: %w", err)
		}
	}

	// the damage table's statements have to go before it can be dropped
	for _, stmt := range []*sql.Stmt{r.trackElement, r.lookupElement} {
		_ = stmt.Close()
	}
	if _, err := r.tx.ExecContext(r.ctx, "DROP TABLE "+damage); err != nil {
		return fmt.Errorf("failed to drop damage tracking table: %w", err)
	}
	return nil
}

func (r *run) relate(name, origin, target string) error {
	res, err := r.insertRelated.ExecContext(r.ctx, name, origin, target)
	if err != nil {
		return &ConstraintError{Op: fmt.Sprintf("insert of relation %q from %q to %q", name, origin, target), Err: err}
	}
	n, err := res.RowsAffected()
	if err == nil {
		r.relations += int(n)
	}
	return nil
}

func referenceTargets(arr core.Array) ([]string, bool) {
	targets := make([]string, 0, len(arr))
	for _, v := range arr {
		target, ok := core.ReferenceTarget(v)
		if !ok {
			return nil, false
		}
		targets = append(targets, target)
	}
	return targets, true
}

// insertEdges is the second pass: relations and extended properties.
func (r *run) insertEdges(src stream.Source) error {
	r.logger.Info("inserting relations & extended_properties")
	rep := progress.New(r.logger, "relation", r.opts.ReportInterval)

	ordinal := -1
	for e, err := range src.Pass() {
		if err != nil {
			return fmt.Errorf("failed to read elements: %w", err)
		}
		ordinal++
		if _, skip := r.skipped[ordinal]; skip {
			continue
		}

		for name, v := range e.Attributes.All() {
			if name == core.IDProperty {
				continue
			}
			if err := r.edge(e, name, v); err != nil {
				return err
			}
		}
		rep.Tick(r.relations)
	}
	rep.Done(r.relations)
	return nil
}

func (r *run) edge(e core.Element, name string, v core.Value) error {
	r.observed[name] = struct{}{}

	// scalar columns were written in the first pass
	if _, ok := r.columnNames[name]; ok && !core.IsPolymorphic(name) {
		r.columnEdge(e, name, v)
		return nil
	}

	switch x := v.(type) {
	case core.Null:
		return nil
	case core.Bool, core.Number, core.String:
		r.primitive[name] = struct{}{}
		return nil
	case core.Object:
		if target, ok := core.ReferenceTarget(x); ok {
			r.relational[name] = struct{}{}
			return r.relate(name, e.ID, target)
		}
	case core.Array:
		if targets, ok := referenceTargets(x); ok {
			r.relational[name] = struct{}{}
			for _, target := range targets {
				if err := r.relate(name, e.ID, target); err != nil {
					return err
				}
			}
			return nil
		}
		if stmt, ok := r.insertExt[name]; ok {
			return r.extendedProperty(stmt, e, name, x)
		}
	}

	if _, ok := r.primitive[name]; ok && !core.IsPolymorphic(name) {
		r.unexpectedPolymorphic[name] = struct{}{}
		r.logger.Error("attribute is believed to be literal, but has a complex value", "attribute", name, "id", e.ID)
		return nil
	}
	r.unexpectedComplex[name] = struct{}{}
	r.logger.Debug("complex attribute is neither a relation nor a known extended property", "attribute", name, "id", e.ID)
	return nil
}

// columnEdge only tracks a column attribute. Complex values were already
// counted as violations when the row was written.
func (r *run) columnEdge(e core.Element, name string, v core.Value) {
	switch v.(type) {
	case core.Null:
	case core.Bool, core.Number, core.String:
		r.primitive[name] = struct{}{}
	default:
		if _, ok := r.primitive[name]; ok {
			r.unexpectedPolymorphic[name] = struct{}{}
			r.logger.Error("attribute is believed to be literal, but has a complex value", "attribute", name, "id", e.ID)
		}
	}
}

func (r *run) extendedProperty(stmt *sql.Stmt, e core.Element, name string, values core.Array) error {
	for _, v := range values {
		s, ok := v.(core.String)
		if !ok {
			r.violation(name, "extended property entry is not a string, skipping it", "id", e.ID)
			continue
		}
		if _, err := stmt.ExecContext(r.ctx, e.ID, string(s)); err != nil {
			return &ConstraintError{Op: fmt.Sprintf("insert of extended property %q of %q", name, e.ID), Err: err}
		}
		r.extended++
	}
	return nil
}

// checkForeignKeys reports dangling references before commit. A failed
// commit would leave the transaction open.
func (r *run) checkForeignKeys() error {
	rows, err := r.tx.QueryContext(r.ctx, "PRAGMA foreign_key_check")
	if err != nil {
		return fmt.Errorf("failed to check foreign keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var (
		violations int
		first      string
	)
	for rows.Next() {
		var (
			table, parent string
			rowid         sql.NullInt64
			fkid          int64
		)
		if err := rows.Scan(&table, &rowid, &parent, &fkid); err != nil {
			return fmt.Errorf("failed to read foreign key check: %w", err)
		}
		if violations == 0 {
			first = fmt.Sprintf("row %d of %s references a missing row of %s", rowid.Int64, table, parent)
		}
		violations++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to check foreign keys: %w", err)
	}
	if violations > 0 {
		return &ConstraintError{
			Op:  "foreign key check",
			Err: fmt.Errorf("%d foreign key violations, first: %s", violations, first),
		}
	}
	return nil
}

func sortedKeys(m map[string]struct{}) []string {
	return slices.Sorted(maps.Keys(m))
}

func (r *run) report() *Report {
	// always understood: db columns, extended properties and relations that
	// never turned up as unexpected complex values
	understood := make(map[string]struct{})
	for _, c := range r.elementColumns {
		understood[c.Name] = struct{}{}
	}
	for _, name := range r.extendedColumns {
		understood[name] = struct{}{}
	}
	for name := range r.relational {
		if _, bad := r.unexpectedComplex[name]; !bad {
			understood[name] = struct{}{}
		}
	}
	problematic := make(map[string]struct{})
	for name := range r.observed {
		if _, ok := understood[name]; !ok {
			problematic[name] = struct{}{}
		}
	}

	report := &Report{
		Elements:              r.elements,
		Duplicates:            r.duplicates,
		Relations:             r.relations,
		ExtendedProperties:    r.extended,
		UnusedColumns:         sortedKeys(r.unusedColumns),
		ProblematicAttributes: sortedKeys(problematic),
		UnexpectedComplex:     sortedKeys(r.unexpectedComplex),
		UnexpectedPolymorphic: sortedKeys(r.unexpectedPolymorphic),
		NonUUIDIDs:            r.nonUUID,
		NonUUIDIDExamples:     r.nonUUIDExamples,
	}
	if len(r.violations) > 0 {
		report.Violations = r.violations
	}
	return report
}

func (r *run) logDiagnostics(report *Report) {
	if len(report.UnusedColumns) > 0 {
		r.logger.Debug("db columns that occurred not at all in the JSON", "columns", report.UnusedColumns)
	}
	if len(report.UnexpectedComplex) > 0 {
		r.logger.Debug("complex attributes observed and ignored at least once", "attributes", report.UnexpectedComplex)
	}
	if len(report.ProblematicAttributes) > 0 {
		r.logger.Warn("attributes were not always understood", "attributes", report.ProblematicAttributes)
	}
	if report.NonUUIDIDs > 0 {
		r.logger.Warn("element ids not in UUID format", "count", report.NonUUIDIDs, "examples", report.NonUUIDIDExamples)
	}
}
