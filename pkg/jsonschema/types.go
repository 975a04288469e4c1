// Package jsonschema models the subset of JSON-Schema used by the SysML v2 API
// schema: a set of named definitions whose types are concrete (array, object,
// string, null, boolean, number, integer) or composite (anyOf, oneOf, $ref).
package jsonschema

import (
	"fmt"
	"slices"
	"strings"
)

// Root is a parsed schema document.
type Root struct {
	Schema string
	Defs   map[string]Definition
}

// DefinitionNames returns the definition names in lexical order.
func (r *Root) DefinitionNames() []string {
	names := make([]string, 0, len(r.Defs))
	for name := range r.Defs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Definition is one entry of the $defs section.
type Definition struct {
	ID    string
	Title string
	Type  Type
}

// Type is a JSON-Schema type. Implementations: Array, Object, String, Null,
// Boolean, Number, Integer, AnyOf, OneOf and Ref.
type Type interface {
	fmt.Stringer
	isType()
}

// Array is {"type":"array","items":...}.
type Array struct {
	Items Type
}

// Object is {"type":"object","properties":{...}}.
type Object struct {
	Properties           map[string]Type
	Required             []string
	AdditionalProperties bool
}

// PropertyNames returns the property names in lexical order.
func (o Object) PropertyNames() []string {
	names := make([]string, 0, len(o.Properties))
	for name := range o.Properties {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// String is {"type":"string"} with optional enum, format or const.
// A nil Enum means no enum was given.
type String struct {
	Enum   []string
	Format string
	Const  *string
}

// IsPlain reports whether the string carries neither enum, format nor const.
func (s String) IsPlain() bool {
	return s.Enum == nil && s.Format == "" && s.Const == nil
}

type (
	// Null is {"type":"null"}.
	Null struct{}
	// Boolean is {"type":"boolean"}.
	Boolean struct{}
	// Number is {"type":"number"}.
	Number struct{}
	// Integer is {"type":"integer"}.
	Integer struct{}
)

// AnyOf is {"anyOf":[...]}.
type AnyOf struct {
	Types []Type
}

// OneOf is {"oneOf":[...]}.
type OneOf struct {
	Types []Type
}

// Ref is {"$ref":"..."}.
type Ref struct {
	Ref string
}

func (Array) isType()   {}
func (Object) isType()  {}
func (String) isType()  {}
func (Null) isType()    {}
func (Boolean) isType() {}
func (Number) isType()  {}
func (Integer) isType() {}
func (AnyOf) isType()   {}
func (OneOf) isType()   {}
func (Ref) isType()     {}

func (a Array) String() string { return "array<" + a.Items.String() + ">" }

func (o Object) String() string {
	return "object{" + strings.Join(o.PropertyNames(), ", ") + "}"
}

func (s String) String() string {
	var attrs []string
	if s.Enum != nil {
		attrs = append(attrs, "enum="+strings.Join(s.Enum, "|"))
	}
	if s.Format != "" {
		attrs = append(attrs, "format="+s.Format)
	}
	if s.Const != nil {
		attrs = append(attrs, "const="+*s.Const)
	}
	if len(attrs) == 0 {
		return "string"
	}
	return "string(" + strings.Join(attrs, ", ") + ")"
}

func (Null) String() string    { return "null" }
func (Boolean) String() string { return "boolean" }
func (Number) String() string  { return "number" }
func (Integer) String() string { return "integer" }
func (a AnyOf) String() string { return "anyOf" + listString(a.Types) }
func (o OneOf) String() string { return "oneOf" + listString(o.Types) }
func (r Ref) String() string   { return "ref(" + r.Ref + ")" }

func listString(types []Type) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = t.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Equal reports whether a and b describe the same type.
func Equal(a, b Type) bool {
	switch x := a.(type) {
	case Array:
		y, ok := b.(Array)
		return ok && Equal(x.Items, y.Items)
	case Object:
		y, ok := b.(Object)
		if !ok || len(x.Properties) != len(y.Properties) || x.AdditionalProperties != y.AdditionalProperties {
			return false
		}
		if !slices.Equal(x.Required, y.Required) {
			return false
		}
		for name, t := range x.Properties {
			u, ok := y.Properties[name]
			if !ok || !Equal(t, u) {
				return false
			}
		}
		return true
	case String:
		y, ok := b.(String)
		if !ok || x.Format != y.Format || (x.Enum == nil) != (y.Enum == nil) || !slices.Equal(x.Enum, y.Enum) {
			return false
		}
		if x.Const == nil || y.Const == nil {
			return x.Const == nil && y.Const == nil
		}
		return *x.Const == *y.Const
	case Null:
		_, ok := b.(Null)
		return ok
	case Boolean:
		_, ok := b.(Boolean)
		return ok
	case Number:
		_, ok := b.(Number)
		return ok
	case Integer:
		_, ok := b.(Integer)
		return ok
	case AnyOf:
		y, ok := b.(AnyOf)
		return ok && slices.EqualFunc(x.Types, y.Types, Equal)
	case OneOf:
		y, ok := b.(OneOf)
		return ok && slices.EqualFunc(x.Types, y.Types, Equal)
	case Ref:
		y, ok := b.(Ref)
		return ok && x.Ref == y.Ref
	default:
		return false
	}
}
