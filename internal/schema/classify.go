package schema

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/sysmlsql/internal/sqlite"
	"github.com/leapstack-labs/sysmlsql/pkg/jsonschema"
)

// identifiedSuffix marks references to the definition every element derives from.
const identifiedSuffix = "/Identified"

// uuidLikePattern is a LIKE pattern for the textual UUID layout.
const uuidLikePattern = "________-____-____-____-____________"

func isIdentifiedRef(t jsonschema.Type) bool {
	ref, ok := t.(jsonschema.Ref)
	return ok && strings.HasSuffix(ref.Ref, identifiedSuffix)
}

// nullUnion returns the non-null member of a two-element union that contains null.
func nullUnion(t jsonschema.Type) (jsonschema.Type, bool) {
	var members []jsonschema.Type
	switch u := t.(type) {
	case jsonschema.OneOf:
		members = u.Types
	case jsonschema.AnyOf:
		members = u.Types
	default:
		return nil, false
	}
	if len(members) != 2 {
		return nil, false
	}
	switch {
	case isNull(members[0]):
		return members[1], true
	case isNull(members[1]):
		return members[0], true
	default:
		return nil, false
	}
}

func isNull(t jsonschema.Type) bool {
	_, ok := t.(jsonschema.Null)
	return ok
}

// Classify maps the type of property name to a representation. The rules are
// tried in order and the first match wins.
func Classify(name string, t jsonschema.Type) (Representation, error) {
	switch ty := t.(type) {
	case jsonschema.Array:
		if isIdentifiedRef(ty.Items) {
			return RelationsTable{}, nil
		}
		if s, ok := ty.Items.(jsonschema.String); ok && s.IsPlain() {
			return ExtendedPropertiesTable{}, nil
		}
	case jsonschema.String:
		if ty.Enum == nil && ty.Const == nil && ty.Format == "uuid" {
			return Column{Unique: true, Type: "TEXT"}, nil
		}
		sqlType, err := SQLType(name, ty)
		if err != nil {
			return nil, err
		}
		return Column{Type: sqlType}, nil
	case jsonschema.Ref:
		if isIdentifiedRef(ty) {
			return RelationsTable{}, nil
		}
	case jsonschema.OneOf, jsonschema.AnyOf:
		if other, ok := nullUnion(ty); ok {
			if isIdentifiedRef(other) {
				return RelationsTable{}, nil
			}
			sqlType, err := SQLType(name, other)
			if err != nil {
				return nil, err
			}
			return Column{Nullable: true, Type: sqlType}, nil
		}
	}
	return nil, fmt.Errorf("%w for %s", ErrUnclassifiable, t)
}

// SQLType returns the SQLite column type, including CHECK constraints, for a
// scalar JSON-Schema type stored in column name.
func SQLType(name string, t jsonschema.Type) (string, error) {
	column := sqlite.QuoteIdent(name)

	switch ty := t.(type) {
	case jsonschema.String:
		switch {
		case ty.Enum != nil && ty.Format == "" && ty.Const == nil:
			if len(ty.Enum) == 0 {
				return "", fmt.Errorf("%w: empty enum", ErrUnclassifiable)
			}
			variants := make([]string, len(ty.Enum))
			for i, v := range ty.Enum {
				variants[i] = sqlite.QuoteLiteral(v)
			}
			return fmt.Sprintf("TEXT CHECK(%s IN (%s))", column, strings.Join(variants, ", ")), nil
		case ty.Enum == nil && ty.Format != "" && ty.Const == nil:
			if ty.Format != "uuid" {
				return "", fmt.Errorf("%w: no SQLite type for string format %q", ErrUnclassifiable, ty.Format)
			}
			return fmt.Sprintf("TEXT CHECK(%s LIKE (%s))", column, sqlite.QuoteLiteral(uuidLikePattern)), nil
		case ty.Enum == nil && ty.Format == "" && ty.Const != nil:
			return fmt.Sprintf("TEXT CHECK(%s = (%s))", column, sqlite.QuoteLiteral(*ty.Const)), nil
		default:
			return "TEXT", nil
		}
	case jsonschema.Integer, jsonschema.Boolean:
		return "INTEGER", nil
	case jsonschema.Number:
		return "REAL", nil
	default:
		return "", fmt.Errorf("%w: no SQLite counterpart for %s", ErrUnclassifiable, t)
	}
}
