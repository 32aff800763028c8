package planning

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// NotFoundError names the missing entity.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Entity)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func notFound(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// ConflictError reports a unique-key violation.
type ConflictError struct {
	Entity string
	Field  string
	Value  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s with this %s already exists", e.Entity, e.Field)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// IsNotFound returns true if err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true if err is or wraps a ConflictError.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
