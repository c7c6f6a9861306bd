package domain

import "errors"

// Contract violations and configuration errors shared across the screener.
// Callers match them with errors.Is.
var (
	// ErrShapeMismatch is returned when aligned inputs have differing lengths
	// or a matrix has the wrong number of columns.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrInvalidBlocks is returned when the block count is incompatible with
	// the series length.
	ErrInvalidBlocks = errors.New("invalid block configuration")
	// ErrInvalidParams is returned for malformed rule parameters.
	ErrInvalidParams = errors.New("invalid parameters")
	// ErrUnknownRule is returned for a rule kind outside the known set.
	ErrUnknownRule = errors.New("unknown rule kind")
	// ErrNonFinite is returned when a NaN or Inf escapes a metric boundary.
	ErrNonFinite = errors.New("non-finite value")
)
