// ABOUTME: Error taxonomy shared by the resolution and aggregation layers
// ABOUTME: Distinguishes missing nodes from backing store failures

package node

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates a path segment or identifier that resolves to
// nothing. It is a terminal outcome, not a fault.
var ErrNotFound = errors.New("node: not found")

// StoreFault wraps a backing store failure. Faults are surfaced
// immediately and never retried.
type StoreFault struct {
	Op  string // Failing store operation
	Err error  // Underlying driver error
}

// Error implements the error interface.
func (f *StoreFault) Error() string {
	return fmt.Sprintf("store: %s: %v", f.Op, f.Err)
}

// Unwrap exposes the underlying driver error.
func (f *StoreFault) Unwrap() error {
	return f.Err
}

// NewStoreFault wraps err as a store fault for the named operation.
func NewStoreFault(op string, err error) error {
	return &StoreFault{Op: op, Err: err}
}

// IsStoreFault reports whether err is (or wraps) a store fault.
func IsStoreFault(err error) bool {
	var f *StoreFault
	return errors.As(err, &f)
}
