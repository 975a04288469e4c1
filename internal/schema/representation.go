// Package schema derives the relational store layout from the SysML v2
// JSON-Schema: every property is classified as a scalar column, a relation or
// an extended property, representations of equally named properties are fused,
// and the result is rendered as a SQLite DDL script.
package schema

import (
	"cmp"
	"fmt"
)

// Representation is how a property is stored. Implementations: Column,
// RelationsTable and ExtendedPropertiesTable.
type Representation interface {
	fmt.Stringer
	isRepresentation()
}

// Column stores the property as a scalar column of the elements table.
type Column struct {
	Unique     bool
	Nullable   bool
	ForeignKey bool
	// Type is the column type, possibly followed by a CHECK constraint.
	Type string
}

// RelationsTable stores the property as rows of the relations table.
type RelationsTable struct{}

// ExtendedPropertiesTable stores the property as rows of the extended
// properties table.
type ExtendedPropertiesTable struct{}

func (Column) isRepresentation()                  {}
func (RelationsTable) isRepresentation()          {}
func (ExtendedPropertiesTable) isRepresentation() {}

func (c Column) String() string {
	return fmt.Sprintf("Column{unique: %t, nullable: %t, foreign_key: %t, type: %q}",
		c.Unique, c.Nullable, c.ForeignKey, c.Type)
}

func (RelationsTable) String() string          { return "RelationsTable" }
func (ExtendedPropertiesTable) String() string { return "ExtendedPropertiesTable" }

func rank(r Representation) int {
	switch r.(type) {
	case Column:
		return 0
	case RelationsTable:
		return 1
	case ExtendedPropertiesTable:
		return 2
	default:
		return 3
	}
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

// compareRepresentations is a total order used to fuse in a stable sequence.
func compareRepresentations(a, b Representation) int {
	if c := cmp.Compare(rank(a), rank(b)); c != 0 {
		return c
	}
	x, ok := a.(Column)
	if !ok {
		return 0
	}
	y := b.(Column)
	if c := compareBool(x.Unique, y.Unique); c != 0 {
		return c
	}
	if c := compareBool(x.Nullable, y.Nullable); c != 0 {
		return c
	}
	if c := compareBool(x.ForeignKey, y.ForeignKey); c != 0 {
		return c
	}
	return cmp.Compare(x.Type, y.Type)
}
