package importer

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

// maxExamples bounds the example ids kept for a diagnostic.
const maxExamples = 5

// Report summarizes one import run. Everything except the counters is
// diagnostic: none of it caused the import to fail.
type Report struct {
	Elements           int           `json:"elements"`
	Duplicates         int           `json:"duplicates"`
	Relations          int           `json:"relations"`
	ExtendedProperties int           `json:"extended_properties"`
	Duration           time.Duration `json:"duration_ns"`

	// UnusedColumns are element columns no imported element had.
	UnusedColumns []string `json:"unused_columns,omitempty"`
	// ProblematicAttributes were not always understood: neither a column
	// nor a clean relation.
	ProblematicAttributes []string `json:"problematic_attributes,omitempty"`
	// UnexpectedComplex attributes had object or array values that are
	// neither relations nor extended properties.
	UnexpectedComplex []string `json:"unexpected_complex,omitempty"`
	// UnexpectedPolymorphic attributes appeared both as scalar and complex.
	UnexpectedPolymorphic []string `json:"unexpected_polymorphic,omitempty"`
	// Violations counts values dropped per attribute because their shape did
	// not match the store.
	Violations map[string]int `json:"violations,omitempty"`

	NonUUIDIDs        int      `json:"non_uuid_ids"`
	NonUUIDIDExamples []string `json:"non_uuid_id_examples,omitempty"`
}

// Clean reports whether the run produced no diagnostics worth a warning.
func (r *Report) Clean() bool {
	return len(r.ProblematicAttributes) == 0 &&
		len(r.UnexpectedComplex) == 0 &&
		len(r.UnexpectedPolymorphic) == 0 &&
		len(r.Violations) == 0
}

// WriteSummary renders the report as a table.
func (r *Report) WriteSummary(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Metric", "Value"})

	t.AppendRows([]table.Row{
		{"elements", r.Elements},
		{"duplicates skipped", r.Duplicates},
		{"relations", r.Relations},
		{"extended properties", r.ExtendedProperties},
		{"duration", r.Duration.Round(time.Millisecond)},
	})

	diag := []struct {
		label  string
		values []string
	}{
		{"unused columns", r.UnusedColumns},
		{"problematic attributes", r.ProblematicAttributes},
		{"unexpected complex", r.UnexpectedComplex},
		{"unexpected polymorphic", r.UnexpectedPolymorphic},
	}
	separated := false
	for _, d := range diag {
		if len(d.values) == 0 {
			continue
		}
		if !separated {
			t.AppendSeparator()
			separated = true
		}
		t.AppendRow(table.Row{d.label, strings.Join(d.values, ", ")})
	}
	for _, name := range slices.Sorted(maps.Keys(r.Violations)) {
		t.AppendRow(table.Row{"violations: " + name, r.Violations[name]})
	}
	if r.NonUUIDIDs > 0 {
		t.AppendRow(table.Row{"non-UUID ids", fmt.Sprintf("%d (e.g. %s)", r.NonUUIDIDs, strings.Join(r.NonUUIDIDExamples, ", "))})
	}
	t.Render()
}
