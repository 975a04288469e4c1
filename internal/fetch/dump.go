package fetch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/leapstack-labs/sysmlsql/internal/stream"
	"github.com/leapstack-labs/sysmlsql/pkg/core"
)

// Merge appends the elements of additional to base. Elements repeated with
// identical content are kept once; the same id with different content is a
// *core.ConflictError.
func Merge(base, additional []core.Element) ([]core.Element, error) {
	out := make([]core.Element, 0, len(base)+len(additional))
	index := make(map[string]int, len(base)+len(additional))
	for _, batch := range [][]core.Element{base, additional} {
		for _, e := range batch {
			if i, ok := index[e.ID]; ok {
				if !out[i].Equal(e) {
					return nil, &core.ConflictError{ID: e.ID}
				}
				continue
			}
			index[e.ID] = len(out)
			out = append(out, e)
		}
	}
	return out, nil
}

// MergeWithDump merges fetched into the dump stored at path, if there is one.
func MergeWithDump(path string, fetched []core.Element) ([]core.Element, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return Merge(nil, fetched)
	case err != nil:
		return nil, fmt.Errorf("failed to inspect dump: %w", err)
	case !info.Mode().IsRegular():
		return nil, fmt.Errorf("dump %s is not a regular file", path)
	}

	var existing []core.Element
	for e, err := range stream.File(path).Pass() {
		if err != nil {
			return nil, fmt.Errorf("failed to read existing dump %s: %w", path, err)
		}
		existing = append(existing, e)
	}
	return Merge(existing, fetched)
}

// WriteDump writes elements to path as a JSON array.
func WriteDump(path string, elements []core.Element, pretty bool) (err error) {
	f, err := os.Create(path) //nolint:gosec // path is chosen by the user
	if err != nil {
		return fmt.Errorf("failed to create dump: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close dump: %w", cerr)
		}
	}()

	if _, err := stream.WriteDump(f, stream.Slice(elements).Pass(), pretty); err != nil {
		return fmt.Errorf("failed to write dump: %w", err)
	}
	return nil
}
