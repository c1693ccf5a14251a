package connector

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectivity is matched by every *ConnectivityError.
	ErrConnectivity = errors.New("source connectivity failure")
	ErrUnsupported  = errors.New("unsupported endpoint scheme")
	ErrTooLarge     = errors.New("payload exceeds size limit")
)

// ConnectivityError reports that a source could not be read. The batch for
// that source is aborted before anything reaches the ledger.
type ConnectivityError struct {
	Source   string
	Endpoint string // credentials redacted
	Status   int    // HTTP status, 0 otherwise
	Err      error
}

func (e *ConnectivityError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: source %q at %s: status %d", ErrConnectivity, e.Source, e.Endpoint, e.Status)
	}
	return fmt.Sprintf("%s: source %q at %s: %v", ErrConnectivity, e.Source, e.Endpoint, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

func (e *ConnectivityError) Is(target error) bool { return target == ErrConnectivity }
