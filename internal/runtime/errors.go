// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"errors"
	"fmt"
)

// ErrHook is the sentinel wrapped by HookError.
var ErrHook = errors.New("command failed")

// HookError reports a hook, post-command or build command that did not
// succeed.
type HookError struct {
	Command  string
	Dir      string
	ExitCode ExitCode
	// Stderr is the trimmed captured error output, if any.
	Stderr string
	Cause  error
}

// Error implements the error interface.
func (e *HookError) Error() string {
	msg := fmt.Sprintf("command %q exited with status %s", e.Command, e.ExitCode)
	if e.Dir != "" {
		msg += " in " + e.Dir
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	} else if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// Unwrap returns the sentinel and the cause for errors.Is() compatibility.
func (e *HookError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrHook}
	}
	return []error{ErrHook, e.Cause}
}
