package schema

import (
	"errors"
	"fmt"

	"github.com/leapstack-labs/sysmlsql/pkg/jsonschema"
)

var (
	// ErrUnsupportedDefinition is returned for definitions, or union members of
	// definitions, that are neither objects nor references.
	ErrUnsupportedDefinition = errors.New("unsupported definition")

	// ErrPrimaryKey is returned when @id is missing or is not a unique,
	// non-nullable, non-foreign-key column.
	ErrPrimaryKey = errors.New("invalid primary key property")

	// ErrUnclassifiable is returned by Classify for unrecognized type shapes.
	ErrUnclassifiable = errors.New("no relational representation")
)

// FusionError reports two irreconcilable representations of one property.
type FusionError struct {
	Property string
	Left     Representation
	Right    Representation
	Reason   string
}

func (e *FusionError) Error() string {
	return fmt.Sprintf("cannot fuse representations of property %q: %s and %s: %s",
		e.Property, e.Left, e.Right, e.Reason)
}

// Problem is a property whose type could not be classified. Problems are
// reported and the property is left out of the schema.
type Problem struct {
	Definition string
	Property   string
	Type       jsonschema.Type
	Reason     string
}

func (p Problem) String() string {
	if p.Property == "" {
		return fmt.Sprintf("%s: %s (%s)", p.Definition, p.Type, p.Reason)
	}
	return fmt.Sprintf("%s.%s: %s (%s)", p.Definition, p.Property, p.Type, p.Reason)
}
