// SPDX-License-Identifier: AGPL-3.0-only
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors wrapped by the constructor helpers below, so callers can
// classify with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
)

// NotFound creates a "not found" error for a named resource.
func NotFound(resource, name string) error {
	return fmt.Errorf("%w: %s %q", ErrNotFound, resource, name)
}

// InvalidInput creates an "invalid input" error with a reason.
func InvalidInput(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, reason)
}

// Internal wraps an unexpected failure as an internal error.
func Internal(err error) error {
	return fmt.Errorf("%w: %v", ErrInternal, err)
}
