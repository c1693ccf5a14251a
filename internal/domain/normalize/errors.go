package normalize

import "errors"

var (
	// ErrUnknownVariant is returned for a variant name nothing implements.
	ErrUnknownVariant = errors.New("unknown normalizer variant")

	errMissingDerived = errors.New("missing derivation input")
)
