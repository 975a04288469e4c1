package stream

import (
	"bytes"
	"fmt"
	"iter"
	"os"

	"github.com/leapstack-labs/sysmlsql/pkg/core"
)

// Source provides independent passes over the same elements. Every call to
// Pass starts over from the first element.
type Source interface {
	Pass() iter.Seq2[core.Element, error]
}

// File is a Source reading a JSON document from disk. Each pass reopens the
// file, so two passes never share a read position.
type File string

// Pass implements Source.
func (f File) Pass() iter.Seq2[core.Element, error] {
	return func(yield func(core.Element, error) bool) {
		fh, err := os.Open(string(f))
		if err != nil {
			yield(core.Element{}, fmt.Errorf("failed to open element document: %w", err))
			return
		}
		defer func() { _ = fh.Close() }()

		for e, err := range NewDecoder(fh).All() {
			if !yield(e, err) {
				return
			}
		}
	}
}

// Bytes is a Source decoding an in-memory JSON document.
type Bytes []byte

// Pass implements Source.
func (b Bytes) Pass() iter.Seq2[core.Element, error] {
	return NewDecoder(bytes.NewReader(b)).All()
}

// Slice is a Source over already decoded elements.
type Slice []core.Element

// Pass implements Source.
func (s Slice) Pass() iter.Seq2[core.Element, error] {
	return func(yield func(core.Element, error) bool) {
		for _, e := range s {
			if !yield(e, nil) {
				return
			}
		}
	}
}
