// Package core provides the main Mnemo client, tying the entry store,
// embedding provider, retrieval strategies, and context builder together
// behind one API.
package core

import (
	"errors"
	"fmt"
)

// Predefined errors for common failure scenarios.
var (
	// ErrNotFound indicates that a requested entry was not found.
	ErrNotFound = errors.New("entry not found")

	// ErrInvalidConfig indicates that the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrConnectionFailed indicates that a connection to the storage backend
	// failed.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrEmbeddingUnavailable indicates that embedding generation failed or
	// the embedding provider is shedding load.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrDuplicateEntry indicates that an entry with the same id already
	// exists.
	ErrDuplicateEntry = errors.New("duplicate entry")

	// ErrInvalidInput indicates that the provided input is invalid.
	ErrInvalidInput = errors.New("invalid input")
)

// MemoryError wraps errors with operation context, making error messages
// more informative for debugging.
//
// Example:
//
//	err := &MemoryError{
//	    Op:  "Remember",
//	    Err: ErrEmbeddingUnavailable,
//	}
//	// Error() returns: "mnemo: Remember: embedding unavailable"
type MemoryError struct {
	// Op is the name of the operation that failed.
	Op string

	// Err is the underlying error.
	Err error
}

// Error returns a formatted error message in the form "mnemo: <Op>: <Err>".
func (e *MemoryError) Error() string {
	return fmt.Sprintf("mnemo: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error, enabling errors.Is and errors.As.
func (e *MemoryError) Unwrap() error {
	return e.Err
}

// NewMemoryError creates a new MemoryError wrapping the given error.
// If err is nil, returns nil, allowing safe unconditional wrapping.
func NewMemoryError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &MemoryError{
		Op:  op,
		Err: err,
	}
}
