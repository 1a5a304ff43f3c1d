package memory

import (
	"errors"
	"fmt"
)

// EmbeddingError wraps a failure to compute an embedding vector. Writes that
// hit one are rejected rather than stored unsearchable; searches fall back to
// keyword matching instead.
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding unavailable: %v", e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// IsEmbeddingError reports whether err is (or wraps) an EmbeddingError.
func IsEmbeddingError(err error) bool {
	var ee *EmbeddingError
	return errors.As(err, &ee)
}

// DimensionError reports an embedding whose length differs from the
// dimensionality the store locked in on its first write. Mixed lengths would
// make every cosine comparison against the offending row meaningless, so the
// write is rejected instead.
type DimensionError struct {
	Want int
	Got  int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("embedding has %d dimensions, store uses %d", e.Got, e.Want)
}

// IsDimensionError reports whether err is (or wraps) a DimensionError.
func IsDimensionError(err error) bool {
	var de *DimensionError
	return errors.As(err, &de)
}

var errNoStore = errors.New("no long-term store configured")

// UnavailableError indicates the long-term store itself could not be reached.
// Callers degrade to short-term-only operation when they see one.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("memory unavailable during %s: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// IsUnavailable reports whether err is (or wraps) an UnavailableError.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}
