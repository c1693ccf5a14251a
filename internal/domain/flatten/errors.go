package flatten

import (
	"errors"
	"fmt"
)

// ErrMalformedTree is the sentinel behind every parse failure.
var ErrMalformedTree = errors.New("malformed tree")

// MalformedTreeError reports unparsable input. Extraction stops at the
// first one and produces no partial output.
type MalformedTreeError struct {
	Format string
	Offset int64
	Err    error
}

func (e *MalformedTreeError) Error() string {
	return fmt.Sprintf("malformed %s tree at offset %d: %v", e.Format, e.Offset, e.Err)
}

func (e *MalformedTreeError) Unwrap() error { return e.Err }

// Is matches ErrMalformedTree.
func (e *MalformedTreeError) Is(target error) bool { return target == ErrMalformedTree }
