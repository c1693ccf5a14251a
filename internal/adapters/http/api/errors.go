package api

import (
	"errors"
	"fmt"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrBackpressure = errors.New("backpressure")
	ErrTooLarge     = errors.New("request body too large")
)

// opError tags an error with the handler operation that produced it.
type opError struct {
	op  string
	err error
}

func (e *opError) Error() string { return fmt.Sprintf("%s: %v", e.op, e.err) }

func (e *opError) Unwrap() error { return e.err }

// wrap annotates err with op; nil stays nil.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &opError{op: op, err: err}
}

// wrapKind annotates cause with op and a sentinel kind so both match errors.Is.
func wrapKind(op string, kind, cause error) error {
	if cause == nil {
		return &opError{op: op, err: kind}
	}
	return &opError{op: op, err: fmt.Errorf("%w: %w", kind, cause)}
}
