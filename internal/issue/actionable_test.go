// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestActionableError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      *ActionableError
		expected string
	}{
		{
			name:     "operation only",
			err:      &ActionableError{Operation: "load workspace"},
			expected: "failed to load workspace",
		},
		{
			name:     "operation with resource",
			err:      &ActionableError{Operation: "load workspace", Resource: "./kmake.yml"},
			expected: "failed to load workspace: ./kmake.yml",
		},
		{
			name:     "operation with cause",
			err:      &ActionableError{Operation: "parse config", Cause: errors.New("syntax error at line 5")},
			expected: "failed to parse config: syntax error at line 5",
		},
		{
			name: "full context",
			err: &ActionableError{
				Operation: "verify download",
				Resource:  "https://example.com/sdk.zip",
				Cause:     errors.New("sha256 mismatch"),
			},
			expected: "failed to verify download: https://example.com/sdk.zip: sha256 mismatch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestActionableError_Unwrap(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("root cause")
	err := &ActionableError{Operation: "load workspace", Cause: fmt.Errorf("wrapped: %w", sentinel)}

	if !errors.Is(err, sentinel) {
		t.Error("errors.Is() should find the sentinel through Unwrap")
	}
}

func TestActionableError_Format(t *testing.T) {
	t.Parallel()

	root := errors.New("no such file or directory")
	err := &ActionableError{
		Operation:   "load workspace",
		Resource:    "./kmake.yml",
		Suggestions: []string{"Check the path", "Pass a directory instead"},
		Cause:       fmt.Errorf("open: %w", root),
	}

	short := err.Format(false)
	if !strings.Contains(short, "  • Check the path") {
		t.Errorf("Format(false) missing suggestion bullet:\n%s", short)
	}
	if strings.Contains(short, "Error chain:") {
		t.Errorf("Format(false) should not include the error chain:\n%s", short)
	}

	verbose := err.Format(true)
	if !strings.Contains(verbose, "Error chain:") {
		t.Errorf("Format(true) missing error chain:\n%s", verbose)
	}
	if !strings.Contains(verbose, "2. no such file or directory") {
		t.Errorf("Format(true) missing unwrapped cause:\n%s", verbose)
	}
}

func TestErrorContext_Build(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	ae := NewErrorContext().
		WithOperation("run hook").
		WithResource("app").
		WithSuggestion("Run the command manually").
		WithIssue(HookFailedId).
		Wrap(cause).
		Build()

	if ae == nil {
		t.Fatal("Build() returned nil")
	}
	if ae.Operation != "run hook" || ae.Resource != "app" {
		t.Errorf("Build() = %+v, unexpected operation/resource", ae)
	}
	if !ae.HasSuggestions() {
		t.Error("HasSuggestions() = false, want true")
	}
	if ae.Issue != HookFailedId {
		t.Errorf("Issue = %d, want %d", ae.Issue, HookFailedId)
	}
	if !errors.Is(ae, cause) {
		t.Error("Build() lost the wrapped cause")
	}
}

func TestErrorContext_BuildWithoutOperation(t *testing.T) {
	t.Parallel()

	if ae := NewErrorContext().WithResource("x").Build(); ae != nil {
		t.Errorf("Build() = %+v, want nil", ae)
	}
	if err := NewErrorContext().BuildError(); err != nil {
		t.Errorf("BuildError() = %v, want nil", err)
	}
}

func TestWrapWithContext(t *testing.T) {
	t.Parallel()

	if WrapWithContext(nil, "op", "res") != nil {
		t.Error("WrapWithContext(nil) should return nil")
	}

	ae := WrapWithContext(errors.New("x"), "fetch", "https://example.com")
	if got, want := ae.Error(), "failed to fetch: https://example.com: x"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
