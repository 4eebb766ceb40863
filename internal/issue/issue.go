// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

type Id int

const (
	WorkspaceNotFoundId Id = iota + 1
	WorkspaceParseErrorId
	ImportNotFoundId
	ProjectNotFoundId
	TemplateNotFoundId
	DependencyCycleId
	IntegrityCheckFailedId
	CapabilityUnavailableId
	HookFailedId
	ConfigLoadFailedId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n## See also:\n"
		for _, link := range i.docLinks {
			extraMd += "\n- [" + string(link) + "](" + string(link) + ")"
		}
		for _, link := range i.extLinks {
			extraMd += "\n- [" + string(link) + "](" + string(link) + ")"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

//nolint:gochecknoglobals // catalog and render seam
var (
	render = glamour.Render

	workspaceNotFoundIssue = &Issue{
		id: WorkspaceNotFoundId,
		mdMsg: `
# No workspace file found!

kmake looked for a ` + "`kmake.yml`" + ` in the project directory and could not find one.

## Things you can try:
- Pass the workspace file explicitly:
~~~
$ kmake resolve ./path/to/kmake.yml
~~~
- Pass the directory that contains ` + "`kmake.yml`" + `
- TOML (` + "`kmake.toml`" + `) and CUE (` + "`kmake.cue`" + `) documents are accepted too`,
	}

	workspaceParseErrorIssue = &Issue{
		id: WorkspaceParseErrorId,
		mdMsg: `
# Failed to parse the workspace!

The workspace document (or one of its imports) is not valid.

## Things you can try:
- Check the file and line reported above
- Make sure ` + "`workspace.content`" + ` is a list of project names
- Matrix fields (` + "`defines`, `includePaths`, ..." + `) must be lists`,
	}

	importNotFoundIssue = &Issue{
		id: ImportNotFoundId,
		mdMsg: `
# Imported document not found!

An entry under ` + "`imports`" + ` does not point to an existing file.

## Things you can try:
- Import paths are relative to the importing document
- Use an absolute path when the document lives outside the workspace`,
	}

	projectNotFoundIssue = &Issue{
		id: ProjectNotFoundId,
		mdMsg: `
# Project not found!

` + "`workspace.content`" + ` names a project that has no record.

## Things you can try:
- Add a top-level record with the same name and ` + "`type: project`" + `
- Remove the name from ` + "`workspace.content`" + ``,
	}

	templateNotFoundIssue = &Issue{
		id: TemplateNotFoundId,
		mdMsg: `
# Template not found!

## Supported templates:
- ` + "`vs2019`" + ` (aliases: ` + "`vs`" + `)
- ` + "`xcodeMac`" + ` (aliases: ` + "`mac`, `xcode`, `xcodemac`" + `)
- ` + "`makefile`" + ` (aliases: ` + "`mk`" + `)`,
	}

	dependencyCycleIssue = &Issue{
		id: DependencyCycleId,
		mdMsg: `
# Dependency cycle detected!

Workspace projects depend on each other in a loop, so no build order exists.

## Things you can try:
- Follow the cycle printed above and remove one of the ` + "`dependencies`" + ` entries
- Move shared code into a separate static library project`,
	}

	integrityCheckFailedIssue = &Issue{
		id: IntegrityCheckFailedId,
		mdMsg: `
# Download integrity check failed!

A downloaded file does not match the hash declared in the workspace. Nothing
was extracted and the download was not marked as completed.

## Things you can try:
- Verify the declared hash against the upstream release page
- Check whether the URL now serves a different artifact
- Remove the partially downloaded file and run again`,
	}

	capabilityUnavailableIssue = &Issue{
		id: CapabilityUnavailableId,
		mdMsg: `
# Operation not supported on this host!

A post-download command needs a platform feature that is not available here,
for example mounting ` + "`.dmg`" + ` images outside macOS.

## Things you can try:
- Restrict the download to the platform with ` + "`platform:`" + ` keys
- Provide an archive format that can be extracted everywhere`,
	}

	hookFailedIssue = &Issue{
		id: HookFailedId,
		mdMsg: `
# Hook failed!

A ` + "`beforePrepare`" + ` or ` + "`afterPrepare`" + ` hook exited with a non-zero status.

## Things you can try:
- Run the command printed above from the project directory
- Skip hooks with ` + "`--skip-hooks`" + ` to inspect the resolved workspace`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

## Things you can try:
- Check ` + "`config.cue`" + ` in the kmake configuration directory
- Print the effective configuration:
~~~
$ kmake config show
~~~`,
	}

	issues = map[Id]*Issue{
		workspaceNotFoundIssue.Id():     workspaceNotFoundIssue,
		workspaceParseErrorIssue.Id():   workspaceParseErrorIssue,
		importNotFoundIssue.Id():        importNotFoundIssue,
		projectNotFoundIssue.Id():       projectNotFoundIssue,
		templateNotFoundIssue.Id():      templateNotFoundIssue,
		dependencyCycleIssue.Id():       dependencyCycleIssue,
		integrityCheckFailedIssue.Id():  integrityCheckFailedIssue,
		capabilityUnavailableIssue.Id(): capabilityUnavailableIssue,
		hookFailedIssue.Id():            hookFailedIssue,
		configLoadFailedIssue.Id():      configLoadFailedIssue,
	}
)

// Values returns every catalog entry ordered by Id.
func Values() []*Issue {
	values := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		values = append(values, i)
	}
	slices.SortFunc(values, func(a, b *Issue) int { return int(a.id) - int(b.id) })
	return values
}

func Get(id Id) *Issue {
	return issues[id]
}
