package importer

import (
	"errors"
	"fmt"
)

// ErrSchemaMissing is returned when the target store has not been initialized.
var ErrSchemaMissing = errors.New("store has no elements table, initialize it first")

// ConstraintError wraps a storage constraint violation. The import
// transaction has been rolled back when it is returned.
type ConstraintError struct {
	Op  string
	Err error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("constraint violation during %s: %v", e.Op, e.Err)
}

func (e *ConstraintError) Unwrap() error { return e.Err }
