// SPDX-License-Identifier: MPL-2.0

package runtime

import "strings"

// Result is the outcome of one command.
type Result struct {
	// Command is the shell text that ran.
	Command string
	// Dir is the directory the command ran in.
	Dir      string
	ExitCode ExitCode
	// Error is set when the command could not be parsed or started, or was
	// interrupted. A non-zero exit alone leaves it nil.
	Error error
	// Output and ErrOutput hold captured stdout and stderr.
	Output    string
	ErrOutput string
}

// Success reports whether the command ran and exited with status 0.
func (r *Result) Success() bool {
	return r.Error == nil && r.ExitCode.IsSuccess()
}

// Err returns nil on success and a HookError otherwise.
func (r *Result) Err() error {
	if r.Success() {
		return nil
	}
	return &HookError{
		Command:  r.Command,
		Dir:      r.Dir,
		ExitCode: r.ExitCode,
		Stderr:   strings.TrimSpace(r.ErrOutput),
		Cause:    r.Error,
	}
}
