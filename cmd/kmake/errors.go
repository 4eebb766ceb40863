// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"

	"kmake-cli/internal/archive"
	"kmake-cli/internal/dag"
	"kmake-cli/internal/download"
	"kmake-cli/internal/issue"
	"kmake-cli/internal/loader"
	"kmake-cli/internal/runtime"
	"kmake-cli/pkg/workspace"
)

type errorClass struct {
	target     error
	operation  string
	id         issue.Id
	suggestion string
}

//nolint:gochecknoglobals // fixed registry
var errorClasses = []errorClass{
	{loader.ErrWorkspaceNotFound, "load workspace", issue.WorkspaceNotFoundId, "Pass the project directory or workspace file as the first argument"},
	{loader.ErrImportNotFound, "load workspace", issue.ImportNotFoundId, "Check the paths listed under imports"},
	{loader.ErrImportCycle, "load workspace", issue.WorkspaceParseErrorId, "Remove the import that leads back to an importing document"},
	{loader.ErrUnsupportedFormat, "load workspace", issue.WorkspaceParseErrorId, "Use a .yml, .yaml, .toml or .cue workspace document"},
	{loader.ErrLoad, "load workspace", issue.WorkspaceParseErrorId, ""},
	{workspace.ErrInvalidTemplate, "select template", issue.TemplateNotFoundId, "Pass one of the supported templates with --template"},
	{dag.ErrCycle, "order projects", issue.DependencyCycleId, ""},
	{download.ErrIntegrity, "download", issue.IntegrityCheckFailedId, ""},
	{archive.ErrCapability, "download", issue.CapabilityUnavailableId, ""},
	{runtime.ErrHook, "run hook", issue.HookFailedId, "Re-run with --verbose to see the command output"},
}

// actionable attaches operation context and a catalog entry to err. Errors
// that already carry context are returned as is.
func actionable(err error) *issue.ActionableError {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae
	}

	for _, c := range errorClasses {
		if !errors.Is(err, c.target) {
			continue
		}
		ec := issue.NewErrorContext().WithOperation(c.operation).WithIssue(c.id).Wrap(err)
		if c.suggestion != "" {
			ec = ec.WithSuggestion(c.suggestion)
		}
		return ec.Build()
	}

	var ve *workspace.ValidationError
	if errors.As(err, &ve) {
		ec := issue.NewErrorContext().WithOperation("resolve workspace").Wrap(err)
		if ve.Project != "" && ve.Field == "" {
			ec = ec.WithResource(ve.Project).WithIssue(issue.ProjectNotFoundId)
		}
		return ec.Build()
	}

	return issue.WrapWithContext(err, "resolve workspace", "")
}
