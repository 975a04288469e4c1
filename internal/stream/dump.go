package stream

import (
	"bytes"
	"fmt"
	"io"
	"iter"

	"github.com/goccy/go-json"
	"github.com/leapstack-labs/sysmlsql/pkg/core"
	"github.com/valyala/fastjson"
)

const indent = "  "

// DumpWriter writes elements as a JSON array, one element at a time.
type DumpWriter struct {
	w      io.Writer
	pretty bool
	count  int
	arena  fastjson.Arena
	buf    []byte
	indent bytes.Buffer
}

// NewDumpWriter returns a writer emitting a compact array, or an indented one
// when pretty is set.
func NewDumpWriter(w io.Writer, pretty bool) *DumpWriter {
	return &DumpWriter{w: w, pretty: pretty}
}

// Write appends one element to the array.
func (d *DumpWriter) Write(e core.Element) error {
	sep := ","
	if d.count == 0 {
		sep = "["
	}
	if d.pretty {
		sep += "\n" + indent
	}
	d.buf = append(d.buf[:0], sep...)

	start := len(d.buf)
	d.buf = AppendElement(d.buf, &d.arena, e)
	if d.pretty {
		d.indent.Reset()
		if err := json.Indent(&d.indent, d.buf[start:], indent, indent); err != nil {
			return fmt.Errorf("failed to indent element %q: %w", e.ID, err)
		}
		d.buf = append(d.buf[:start], d.indent.Bytes()...)
	}

	if _, err := d.w.Write(d.buf); err != nil {
		return fmt.Errorf("failed to write element %q: %w", e.ID, err)
	}
	d.count++
	return nil
}

// Close terminates the array. It does not close the underlying writer.
func (d *DumpWriter) Close() error {
	var tail string
	switch {
	case d.count == 0:
		tail = "[]"
	case d.pretty:
		tail = "\n]"
	default:
		tail = "]"
	}
	if d.pretty {
		tail += "\n"
	}
	_, err := io.WriteString(d.w, tail)
	return err
}

// Count returns the number of elements written.
func (d *DumpWriter) Count() int { return d.count }

// WriteDump writes all elements of seq to w.
func WriteDump(w io.Writer, seq iter.Seq2[core.Element, error], pretty bool) (int, error) {
	dw := NewDumpWriter(w, pretty)
	for e, err := range seq {
		if err != nil {
			return dw.Count(), err
		}
		if err := dw.Write(e); err != nil {
			return dw.Count(), err
		}
	}
	return dw.Count(), dw.Close()
}
