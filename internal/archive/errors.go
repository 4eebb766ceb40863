// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"errors"
	"fmt"
)

var (
	// ErrCapability is the sentinel wrapped by CapabilityError.
	ErrCapability = errors.New("operation not supported on this host")
	// ErrUnsupportedFormat is returned for files that are not a known archive.
	ErrUnsupportedFormat = errors.New("unsupported archive format")
	// ErrUnsafePath is returned for entries that would land outside the destination.
	ErrUnsafePath = errors.New("archive entry escapes destination")
)

// CapabilityError reports an operation that needs a platform feature the
// current host lacks, such as mounting a disk image outside macOS.
type CapabilityError struct {
	Operation string
	Platform  string
}

// Error implements the error interface.
func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s is not supported on %s", e.Operation, e.Platform)
}

// Unwrap returns ErrCapability for errors.Is() compatibility.
func (e *CapabilityError) Unwrap() error { return ErrCapability }
