package mutation

import (
	"errors"
	"fmt"
)

// ErrNilOperation is returned when a mutation has no Do function.
var ErrNilOperation = errors.New("mutation: operation is nil")

// MutationError is returned by Run when the remote call fails.
type MutationError struct {
	Name       string
	Err        error
	RolledBack bool
}

func (e *MutationError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("mutation: %v", e.Err)
	}
	return fmt.Sprintf("mutation %s: %v", e.Name, e.Err)
}

func (e *MutationError) Unwrap() error {
	return e.Err
}
