package core

import (
	"math"
	"strconv"
	"strings"
)

// Value is a JSON-shaped attribute value. The set of implementations is closed:
// Null, Bool, Number, String, Array and Object.
type Value interface {
	isValue()
}

// Null is the JSON null literal.
type Null struct{}

// Bool is a JSON boolean.
type Bool bool

// Number is a JSON number kept in its original textual form so that integral
// and floating values can be told apart without losing precision.
type Number string

// String is a JSON string.
type String string

// Array is a JSON array.
type Array []Value

// Object is a JSON object with unique, ordered member names.
type Object struct {
	Attributes
}

func (Null) isValue()   {}
func (Bool) isValue()   {}
func (Number) isValue() {}
func (String) isValue() {}
func (Array) isValue()  {}
func (Object) isValue() {}

// IsIntegral reports whether the number was written without fraction or exponent.
func (n Number) IsIntegral() bool {
	return !strings.ContainsAny(string(n), ".eE")
}

// Int64 returns the number as an integer. ok is false for floating or
// out-of-range numbers.
func (n Number) Int64() (v int64, ok bool) {
	if !n.IsIntegral() {
		return 0, false
	}
	v, err := strconv.ParseInt(string(n), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Float64 returns the number as a float.
func (n Number) Float64() float64 {
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// IsComplex reports whether v is an array or an object.
func IsComplex(v Value) bool {
	switch v.(type) {
	case Array, Object:
		return true
	default:
		return false
	}
}

// ReferenceTarget returns the referenced id when v has the relation shape
// {"@id": "<id>"}: an object with exactly one member, named @id, holding a string.
func ReferenceTarget(v Value) (string, bool) {
	obj, ok := v.(Object)
	if !ok || obj.Len() != 1 {
		return "", false
	}
	id, ok := obj.Get(IDProperty)
	if !ok {
		return "", false
	}
	s, ok := id.(String)
	return string(s), ok
}

// Equal reports whether a and b are structurally identical. Object members are
// compared by name, regardless of their order.
func Equal(a, b Value) bool {
	switch x := a.(type) {
	case Null:
		_, ok := b.(Null)
		return ok
	case Bool:
		y, ok := b.(Bool)
		return ok && x == y
	case Number:
		y, ok := b.(Number)
		return ok && x == y
	case String:
		y, ok := b.(String)
		return ok && x == y
	case Array:
		y, ok := b.(Array)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case Object:
		y, ok := b.(Object)
		return ok && x.Attributes.Equal(y.Attributes)
	default:
		return false
	}
}
