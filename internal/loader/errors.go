// SPDX-License-Identifier: MPL-2.0

package loader

import (
	"errors"
	"fmt"
)

var (
	// ErrLoad is the sentinel wrapped by LoadError.
	ErrLoad = errors.New("failed to load workspace document")
	// ErrWorkspaceNotFound is returned when a project directory holds no workspace document.
	ErrWorkspaceNotFound = errors.New("workspace document not found")
	// ErrImportNotFound is returned when an imports entry does not exist.
	ErrImportNotFound = errors.New("import not found")
	// ErrImportCycle is returned when a document imports itself, directly or not.
	ErrImportCycle = errors.New("import cycle")
	// ErrUnsupportedFormat is returned for extensions without a decoder.
	ErrUnsupportedFormat = errors.New("unsupported document format")
)

// LoadError reports a document that could not be read or parsed.
// It wraps ErrLoad and the underlying cause for errors.Is() compatibility.
type LoadError struct {
	Path  string
	Cause error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Cause)
}

// Unwrap returns the sentinel and the cause.
func (e *LoadError) Unwrap() []error {
	return []error{ErrLoad, e.Cause}
}
