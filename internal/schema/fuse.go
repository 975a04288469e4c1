package schema

import (
	"strings"

	"github.com/leapstack-labs/sysmlsql/pkg/core"
)

// Fuse merges two representations of property name. Identical inputs fuse to
// themselves. Two columns fuse when their foreign-key-ness, uniqueness and
// types agree, where all text types count as one; nullability is OR-ed. A
// foreign-key column is absorbed by RelationsTable. Anything else fails with
// a *FusionError.
func Fuse(name string, a, b Representation) (Representation, error) {
	if a == b {
		return a, nil
	}

	fail := func(reason string) (Representation, error) {
		return nil, &FusionError{Property: name, Left: a, Right: b, Reason: reason}
	}

	switch x := a.(type) {
	case Column:
		switch y := b.(type) {
		case Column:
			if x.ForeignKey != y.ForeignKey && !core.IsPolymorphic(name) {
				return fail("differing foreign key constraints")
			}
			fused := x
			bothText := strings.HasPrefix(x.Type, "TEXT") && strings.HasPrefix(y.Type, "TEXT")
			switch {
			case bothText:
				fused.Type = "TEXT"
			case x.Type != y.Type:
				return fail("differing types")
			}
			if x.Unique != y.Unique {
				return fail("differing uniqueness")
			}
			fused.Nullable = x.Nullable || y.Nullable
			return fused, nil
		case RelationsTable:
			if x.ForeignKey {
				return RelationsTable{}, nil
			}
		}
	case RelationsTable:
		if y, ok := b.(Column); ok && y.ForeignKey {
			if y.Type != "TEXT" {
				return fail("foreign key columns must be TEXT")
			}
			return RelationsTable{}, nil
		}
	}
	return fail("incompatible representations")
}

// FuseAll folds reprs, which must be sorted, into one representation.
func FuseAll(name string, reprs []Representation) (Representation, error) {
	acc := reprs[0]
	for _, r := range reprs[1:] {
		fused, err := Fuse(name, acc, r)
		if err != nil {
			return nil, err
		}
		acc = fused
	}
	return acc, nil
}
