package repository

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("ledger entry not found")
	ErrInvalidRequest = errors.New("invalid ingest request")
	// ErrStorage is matched by every *StorageError.
	ErrStorage = errors.New("ledger storage failure")
	ErrClosed  = errors.New("ledger store closed")
)

// StorageError is a failure of the underlying storage. Callers may retry
// the same ingest; the transition is idempotent.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStorage, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// Retryable is false when the caller gave up or the store is closed.
func (e *StorageError) Retryable() bool {
	switch {
	case errors.Is(e.Err, ErrClosed),
		errors.Is(e.Err, context.Canceled),
		errors.Is(e.Err, context.DeadlineExceeded):
		return false
	}
	return true
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
