package service

import "errors"

var (
	ErrNotStarted    = errors.New("service not started")
	ErrUnknownSource = errors.New("unknown source")
	ErrNoSources     = errors.New("no sources configured")
	ErrJobNotFound   = errors.New("job not found")
	// ErrNoPublisher aborts a batch whose records could never be keyed.
	ErrNoPublisher = errors.New("publisher is empty")
	// ErrBusy is returned when the job queue is full; retry later.
	ErrBusy = errors.New("workflow queue is full")
)
