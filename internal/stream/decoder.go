// Package stream decodes JSON arrays of elements one element at a time and
// writes element dumps.
package stream

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/leapstack-labs/sysmlsql/pkg/core"
	"github.com/valyala/fastjson"
)

type decoderState int

const (
	stateStart decoderState = iota
	stateFirst
	stateNext
	stateDone
)

// Decoder reads the elements of a top-level JSON array lazily. Only the bytes
// of the next element are held in memory.
type Decoder struct {
	r      *bufio.Reader
	offset int64
	state  decoderState
	count  int
	buf    []byte
	parser fastjson.Parser
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReaderSize(r, 64*1024)}
}

// Offset returns the number of bytes consumed so far.
func (d *Decoder) Offset() int64 { return d.offset }

func (d *Decoder) syntaxError(format string, args ...any) error {
	d.state = stateDone
	return &SyntaxError{Offset: d.offset, Msg: fmt.Sprintf(format, args...)}
}

func (d *Decoder) readByte() (byte, error) {
	c, err := d.r.ReadByte()
	if err == nil {
		d.offset++
	}
	return c, err
}

func (d *Decoder) unreadByte() {
	_ = d.r.UnreadByte()
	d.offset--
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// nextToken skips whitespace and returns the next byte.
func (d *Decoder) nextToken() (byte, error) {
	for {
		c, err := d.readByte()
		if err != nil {
			return 0, err
		}
		if !isSpace(c) {
			return c, nil
		}
	}
}

func (d *Decoder) eof(err error, what string) error {
	if errors.Is(err, io.EOF) {
		return d.syntaxError("unexpected end of document, expected %s", what)
	}
	d.state = stateDone
	return fmt.Errorf("failed to read element document: %w", err)
}

// Next returns the next element, or io.EOF after the closing bracket.
func (d *Decoder) Next() (core.Element, error) {
	switch d.state {
	case stateStart:
		c, err := d.nextToken()
		if err != nil {
			return core.Element{}, d.eof(err, "'['")
		}
		if c != '[' {
			return core.Element{}, d.syntaxError("expected '[', found %q", c)
		}
		d.state = stateFirst
		return d.Next()

	case stateFirst:
		c, err := d.nextToken()
		if err != nil {
			return core.Element{}, d.eof(err, "element or ']'")
		}
		if c == ']' {
			return core.Element{}, d.finish()
		}
		d.unreadByte()
		return d.element()

	case stateNext:
		c, err := d.nextToken()
		if err != nil {
			return core.Element{}, d.eof(err, "',' or ']'")
		}
		switch c {
		case ']':
			return core.Element{}, d.finish()
		case ',':
			c, err := d.nextToken()
			if err != nil {
				return core.Element{}, d.eof(err, "element")
			}
			if c == ']' {
				return core.Element{}, d.syntaxError("trailing comma before ']'")
			}
			d.unreadByte()
			return d.element()
		default:
			return core.Element{}, d.syntaxError("expected ',' or ']', found %q", c)
		}

	default:
		return core.Element{}, io.EOF
	}
}

// finish accepts only whitespace after the closing bracket.
func (d *Decoder) finish() error {
	c, err := d.nextToken()
	switch {
	case errors.Is(err, io.EOF):
		d.state = stateDone
		return io.EOF
	case err != nil:
		return d.eof(err, "end of document")
	default:
		return d.syntaxError("unexpected %q after closing bracket", c)
	}
}

func (d *Decoder) element() (core.Element, error) {
	start := d.offset
	if err := d.readValue(); err != nil {
		return core.Element{}, err
	}
	e, err := ParseElement(&d.parser, d.buf)
	if err != nil {
		d.state = stateDone
		return core.Element{}, &SyntaxError{Offset: start, Msg: fmt.Sprintf("element %d: %v", d.count, err)}
	}
	d.count++
	d.state = stateNext
	return e, nil
}

// readValue copies the bytes of the next JSON value into d.buf. Nesting is
// tracked outside of strings so the value can be handed to the parser whole.
func (d *Decoder) readValue() error {
	d.buf = d.buf[:0]

	c, err := d.readByte()
	if err != nil {
		return d.eof(err, "value")
	}
	d.buf = append(d.buf, c)

	switch c {
	case '{', '[':
		return d.readNested()
	case '"':
		return d.readString()
	case ',', ']', '}', ':':
		return d.syntaxError("expected value, found %q", c)
	}

	// literal or number, ends at the next delimiter
	for {
		c, err := d.readByte()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return d.eof(err, "value")
		}
		if isSpace(c) || c == ',' || c == ']' {
			d.unreadByte()
			return nil
		}
		d.buf = append(d.buf, c)
	}
}

func (d *Decoder) readString() error {
	escaped := false
	for {
		c, err := d.readByte()
		if err != nil {
			return d.eof(err, "end of string")
		}
		d.buf = append(d.buf, c)
		switch {
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case c == '"':
			return nil
		}
	}
}

func (d *Decoder) readNested() error {
	depth := 1
	for depth > 0 {
		c, err := d.readByte()
		if err != nil {
			return d.eof(err, "end of element")
		}
		d.buf = append(d.buf, c)
		switch c {
		case '"':
			if err := d.readString(); err != nil {
				return err
			}
		case '{', '[':
			depth++
		case '}', ']':
			depth--
		}
	}
	return nil
}

// All iterates the remaining elements. Iteration stops after the first error.
func (d *Decoder) All() iter.Seq2[core.Element, error] {
	return func(yield func(core.Element, error) bool) {
		for {
			e, err := d.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(e, err) || err != nil {
				return
			}
		}
	}
}

// DecodeAll reads every element of the array in r.
func DecodeAll(r io.Reader) ([]core.Element, error) {
	var out []core.Element
	for e, err := range NewDecoder(r).All() {
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
