// SPDX-License-Identifier: MPL-2.0

package download

import (
	"errors"
	"fmt"
)

var (
	// ErrIntegrity is the sentinel wrapped by IntegrityError.
	ErrIntegrity = errors.New("download integrity check failed")
	// ErrUnknownAlgorithm is returned for a digest algorithm that cannot be computed.
	ErrUnknownAlgorithm = errors.New("unknown hash algorithm")
	// ErrHTTPStatus is returned when a server answers with a non-2xx status.
	ErrHTTPStatus = errors.New("unexpected HTTP status")
)

// IntegrityError reports a downloaded file whose digest differs from the
// declared one.
type IntegrityError struct {
	URL       string
	Path      string
	Algorithm string
	Expected  string
	Got       string
}

// Error implements the error interface.
func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s digest mismatch for %s\nExpected: %s\nGot:      %s", e.Algorithm, e.URL, e.Expected, e.Got)
}

// Unwrap returns ErrIntegrity for errors.Is() compatibility.
func (e *IntegrityError) Unwrap() error { return ErrIntegrity }
