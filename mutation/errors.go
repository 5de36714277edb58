package mutation

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingName is returned when a Mutation has no Name.
	ErrMissingName = errors.New("mutation: name is required")

	// ErrNilDo is returned when a Mutation has no Do function.
	ErrNilDo = errors.New("mutation: do function is required")

	// ErrInvalidPatch is returned when an optimistic Patch lacks a target,
	// an Apply or a Revert.
	ErrInvalidPatch = errors.New("mutation: optimistic patch needs a target, apply and revert")

	// ErrClosed is returned by Run after the Dispatcher is closed.
	ErrClosed = errors.New("mutation: dispatcher is closed")
)

// Error is a failed mutation.
type Error struct {
	Mutation string
	Err      error
	// RolledBack is set when optimistic patches were reverted.
	RolledBack bool
}

func (e *Error) Error() string {
	if e.RolledBack {
		return fmt.Sprintf("mutation: %s failed, rolled back: %v", e.Mutation, e.Err)
	}
	return fmt.Sprintf("mutation: %s failed: %v", e.Mutation, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
