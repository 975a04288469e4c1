package stream

import (
	"errors"
	"fmt"
)

// ErrMalformedDocument is matched by every error caused by the input not
// being a JSON array of element objects.
var ErrMalformedDocument = errors.New("malformed element document")

// SyntaxError locates a malformed document error.
type SyntaxError struct {
	// Offset is the number of bytes consumed before the error was detected.
	Offset int64
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s at offset %d: %s", ErrMalformedDocument, e.Offset, e.Msg)
}

func (e *SyntaxError) Unwrap() error { return ErrMalformedDocument }
