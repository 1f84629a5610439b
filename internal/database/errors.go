package database

import (
	"errors"
	"fmt"
)

var (
	// ErrStorage marks every failure to read, decode, validate or persist the embedding store.
	ErrStorage = errors.New("embedding store error")

	// ErrDegenerateVector is returned when a vector cannot be normalized (zero or non-finite norm).
	ErrDegenerateVector = errors.New("degenerate vector")

	// ErrNotFound is returned by record stores when an identity has no record.
	ErrNotFound = errors.New("record not found")
)

// StorageError describes a failed embedding store operation.
// It matches ErrStorage and the underlying cause with errors.Is.
type StorageError struct {
	Op   string // load, decode, validate, persist
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("embedding store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("embedding store %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() []error { return []error{ErrStorage, e.Err} }

// DimensionError is returned when a vector does not match the store dimension.
type DimensionError struct {
	Expected int
	Actual   int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}
