package identity

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingRequiredField is wrapped by MissingFieldError.
	ErrMissingRequiredField = errors.New("missing required key field")
	ErrNoKeyFields          = errors.New("no key fields configured")
	ErrUnhashable           = errors.New("record cannot be serialized")
)

// MissingFieldError names the key field that was absent or empty.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingRequiredField, e.Field)
}

func (e *MissingFieldError) Unwrap() error { return ErrMissingRequiredField }
