package queue

import "errors"

var (
	// ErrFull signals backpressure; callers should retry later.
	ErrFull   = errors.New("job queue full")
	ErrClosed = errors.New("job queue closed")
)
