package core

import (
	"fmt"
	"iter"
	"slices"
)

// Attribute is a single named member of an element or object.
type Attribute struct {
	Name  string
	Value Value
}

// Attributes is an ordered mapping from unique names to values.
// The zero value is an empty mapping.
type Attributes struct {
	list  []Attribute
	index map[string]int
}

// DuplicateAttributeError is returned when a name occurs twice in one mapping.
type DuplicateAttributeError struct {
	Name string
}

func (e *DuplicateAttributeError) Error() string {
	return fmt.Sprintf("duplicate attribute %q", e.Name)
}

// NewAttributes builds a mapping preserving the given order.
func NewAttributes(attrs ...Attribute) (Attributes, error) {
	a := Attributes{
		list:  make([]Attribute, 0, len(attrs)),
		index: make(map[string]int, len(attrs)),
	}
	for _, attr := range attrs {
		if err := a.add(attr); err != nil {
			return Attributes{}, err
		}
	}
	return a, nil
}

// MustAttributes is like NewAttributes but panics on duplicate names.
// Intended for literals in tests and fixtures.
func MustAttributes(attrs ...Attribute) Attributes {
	a, err := NewAttributes(attrs...)
	if err != nil {
		panic(err)
	}
	return a
}

func (a *Attributes) add(attr Attribute) error {
	if _, dup := a.index[attr.Name]; dup {
		return &DuplicateAttributeError{Name: attr.Name}
	}
	a.index[attr.Name] = len(a.list)
	a.list = append(a.list, attr)
	return nil
}

// Len returns the number of attributes.
func (a Attributes) Len() int { return len(a.list) }

// Get returns the value stored under name.
func (a Attributes) Get(name string) (Value, bool) {
	i, ok := a.index[name]
	if !ok {
		return nil, false
	}
	return a.list[i].Value, true
}

// All iterates the attributes in insertion order.
func (a Attributes) All() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		for _, attr := range a.list {
			if !yield(attr.Name, attr.Value) {
				return
			}
		}
	}
}

// Names returns the attribute names in insertion order.
func (a Attributes) Names() []string {
	names := make([]string, len(a.list))
	for i, attr := range a.list {
		names[i] = attr.Name
	}
	return names
}

// SortedNames returns the attribute names in lexical order.
func (a Attributes) SortedNames() []string {
	names := a.Names()
	slices.Sort(names)
	return names
}

// Equal reports whether both mappings hold the same names with equal values.
func (a Attributes) Equal(b Attributes) bool {
	if a.Len() != b.Len() {
		return false
	}
	for name, v := range a.All() {
		w, ok := b.Get(name)
		if !ok || !Equal(v, w) {
			return false
		}
	}
	return true
}
