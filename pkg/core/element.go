package core

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrMissingID is returned for element objects without a string @id.
var ErrMissingID = errors.New("element has no string " + strconv.Quote(IDProperty) + " attribute")

// Element is one model entity. Attributes include the @id attribute itself.
type Element struct {
	ID         string
	Attributes Attributes
}

// NewElement builds an element from its attributes, taking the identity from @id.
func NewElement(attrs Attributes) (Element, error) {
	v, ok := attrs.Get(IDProperty)
	if !ok {
		return Element{}, ErrMissingID
	}
	id, ok := v.(String)
	if !ok {
		return Element{}, ErrMissingID
	}
	return Element{ID: string(id), Attributes: attrs}, nil
}

// Equal reports whether two elements carry the same id and identical attributes.
func (e Element) Equal(other Element) bool {
	return e.ID == other.ID && e.Attributes.Equal(other.Attributes)
}

// ConflictError reports two elements sharing an id with divergent content.
type ConflictError struct {
	ID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflicting definitions for element %q", e.ID)
}
