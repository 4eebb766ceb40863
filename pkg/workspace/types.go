// SPDX-License-Identifier: MPL-2.0

package workspace

import (
	"errors"
	"fmt"
	"slices"
	"sort"
)

const (
	// OutputMain builds an executable.
	OutputMain OutputType = "main"
	// OutputApp builds an application bundle.
	OutputApp OutputType = "app"
	// OutputFramework builds a framework bundle.
	OutputFramework OutputType = "framework"
	// OutputStatic builds a static library.
	OutputStatic OutputType = "static"
	// OutputDynamic builds a shared library.
	OutputDynamic OutputType = "dynamic"

	HookBeforePrepare HookPoint = "beforePrepare"
	HookPreBuild      HookPoint = "preBuild"
	HookPreLink       HookPoint = "preLink"
	HookPostBuild     HookPoint = "postBuild"
	HookAfterPrepare  HookPoint = "afterPrepare"

	// ConfigRelease is the default configuration.
	ConfigRelease Config = "release"
	// ConfigDebug is the debug configuration.
	ConfigDebug Config = "debug"

	// KindProject is the record type that takes part in source and dependency resolution.
	KindProject = "project"
)

var (
	// ErrValidation is the sentinel wrapped by ValidationError.
	ErrValidation = errors.New("workspace validation failed")
	// ErrInvalidOutputType is returned when an OutputType value is not recognized.
	ErrInvalidOutputType = errors.New("invalid output type")
	// ErrInvalidTemplate is returned when a template name or alias is not recognized.
	ErrInvalidTemplate = errors.New("invalid template")

	// Configurations lists every build configuration. The first entry is the default.
	//
	//nolint:gochecknoglobals // fixed registry
	Configurations = []Config{ConfigRelease, ConfigDebug}

	// HookPoints lists the hook points in pipeline order.
	//
	//nolint:gochecknoglobals // fixed registry
	HookPoints = []HookPoint{HookBeforePrepare, HookPreBuild, HookPreLink, HookPostBuild, HookAfterPrepare}

	// HashAlgorithms lists the digest names a download may declare.
	//
	//nolint:gochecknoglobals // fixed registry
	HashAlgorithms = []string{"md5", "sha1", "sha256", "sha384", "sha512"}
)

type (
	// Arch is an architecture identifier such as "x86_64" or "win32".
	Arch string

	// Config is a build configuration name such as "release".
	Config string

	// OutputType is the kind of artifact a project produces.
	OutputType string

	// HookPoint names a pipeline point at which hook commands run.
	HookPoint string

	// InvalidOutputTypeError is returned when an OutputType value is not recognized.
	InvalidOutputTypeError struct {
		Value OutputType
	}

	// ValidationError reports a workspace that cannot be resolved consistently.
	// It wraps ErrValidation for errors.Is() compatibility.
	ValidationError struct {
		// Project is the record name involved, if any.
		Project string
		// Field is the project field involved, if any.
		Field  string
		Reason string
		Cause  error
	}

	// ResolutionWarning is a recoverable condition. Resolution continues with
	// degraded information.
	ResolutionWarning struct {
		Stage   string
		Subject string
		Message string
	}

	// Workspace is the top-level workspace block.
	Workspace struct {
		Name string `yaml:"name,omitempty"`
		// Content lists project names. Order is significant for emitters.
		Content  []string       `yaml:"content"`
		Settings map[string]any `yaml:"settings,omitempty"`
	}

	// Define is a preprocessor define, either a bare flag or NAME=value.
	Define struct {
		Name     string
		Value    string
		HasValue bool
	}

	// PostCmd is one post-download action. Exactly one field is expected to be set.
	PostCmd struct {
		ConvertTo string `yaml:"convertTo,omitempty" json:"convertTo,omitempty"`
		ExtractTo string `yaml:"extractTo,omitempty" json:"extractTo,omitempty"`
		Cmd       string `yaml:"cmd,omitempty" json:"cmd,omitempty"`
	}

	// Download describes an external artifact. Hashes maps a hash algorithm
	// name (md5, sha1, sha256, ...) to the expected hex digest.
	Download struct {
		URL        string            `yaml:"url" json:"url"`
		Dest       string            `yaml:"dest" json:"dest"`
		WorkingDir string            `yaml:"workingDir,omitempty" json:"workingDir"`
		Hashes     map[string]string `yaml:"hashes,omitempty" json:"hashes,omitempty"`
		PostCmds   []PostCmd         `yaml:"postCmds,omitempty" json:"postCmds,omitempty"`
	}

	// Asset is a file or directory copied next to the build output.
	Asset struct {
		Source      string   `yaml:"source"`
		Destination string   `yaml:"destination"`
		Exclude     []string `yaml:"exclude,omitempty"`
	}

	// Check is a compile probe. Probe is either a path relative to the
	// project directory or inline source text.
	Check struct {
		Name  string `json:"name"`
		Probe string `json:"probe"`
	}

	// Project is a fully resolved build target.
	Project struct {
		Name       string     `yaml:"-"`
		Type       string     `yaml:"type"`
		OutputType OutputType `yaml:"outputType"`
		WorkingDir string     `yaml:"workingDir"`

		Sources     []string `yaml:"sources,omitempty"`
		SourcesBase []string `yaml:"sourcesBase,omitempty"`

		Settings map[string]any `yaml:"settings,omitempty"`

		Dependencies      Matrix[string]   `yaml:"dependencies"`
		EmbedDependencies Matrix[string]   `yaml:"embedDependencies"`
		IncludePaths      Matrix[string]   `yaml:"includePaths"`
		LibPaths          Matrix[string]   `yaml:"libPaths"`
		Defines           Matrix[Define]   `yaml:"defines"`
		BuildFlags        Matrix[string]   `yaml:"buildFlags"`
		LinkerFlags       Matrix[string]   `yaml:"linkerFlags"`
		Downloads         Matrix[Download] `yaml:"downloads"`

		Hooks map[HookPoint]Matrix[string] `yaml:"hooks"`

		Assets []Asset `yaml:"assets,omitempty"`

		// Extra keeps keys the resolver does not interpret.
		Extra map[string]any `yaml:",inline"`
	}

	// Spec is a resolved workspace: typed projects with matrix fields.
	Spec struct {
		Workspace Workspace           `yaml:"workspace"`
		Variables map[string]string   `yaml:"variables,omitempty"`
		Inputs    []string            `yaml:"inputs,omitempty"`
		Checks    []Check             `yaml:"-"`
		Projects  map[string]*Project `yaml:"projects"`
		// Aux holds records that are not projects, unchanged.
		Aux map[string]any `yaml:"aux,omitempty"`

		// Archs and Configs are the active matrix dimensions.
		Archs   []Arch   `yaml:"archs"`
		Configs []Config `yaml:"configs"`
	}
)

// String returns the string representation of the OutputType.
func (o OutputType) String() string { return string(o) }

// IsValid returns whether the OutputType is one of the defined output types,
// and a list of validation errors if it is not.
func (o OutputType) IsValid() (bool, []error) {
	switch o {
	case OutputMain, OutputApp, OutputFramework, OutputStatic, OutputDynamic:
		return true, nil
	default:
		return false, []error{&InvalidOutputTypeError{Value: o}}
	}
}

// Linkable reports whether other projects can link against or embed this output type.
func (o OutputType) Linkable() bool {
	return o == OutputStatic || o == OutputDynamic || o == OutputFramework
}

// Error implements the error interface.
func (e *InvalidOutputTypeError) Error() string {
	return fmt.Sprintf("invalid output type %q (valid: main, app, framework, static, dynamic)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidOutputTypeError) Unwrap() error { return ErrInvalidOutputType }

// Error implements the error interface.
func (e *ValidationError) Error() string {
	msg := "validation failed"
	switch {
	case e.Project != "" && e.Field != "":
		msg = fmt.Sprintf("project %q: %s", e.Project, e.Field)
	case e.Project != "":
		msg = fmt.Sprintf("project %q", e.Project)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the sentinel and the cause for errors.Is() compatibility.
func (e *ValidationError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrValidation}
	}
	return []error{ErrValidation, e.Cause}
}

func (w ResolutionWarning) String() string {
	if w.Subject == "" {
		return w.Stage + ": " + w.Message
	}
	return w.Stage + ": " + w.Subject + ": " + w.Message
}

// String renders the define the way compilers accept it on the command line.
func (d Define) String() string {
	if !d.HasValue {
		return d.Name
	}
	return d.Name + "=" + d.Value
}

// MarshalYAML renders flag defines as scalars and valued defines as single-key mappings.
func (d Define) MarshalYAML() (any, error) {
	if !d.HasValue {
		return d.Name, nil
	}
	return map[string]string{d.Name: d.Value}, nil
}

// CollapseDefines removes earlier duplicates by name so the most specific
// declaration, which comes last, wins.
func CollapseDefines(defines []Define) []Define {
	last := make(map[string]int, len(defines))
	for i, d := range defines {
		last[d.Name] = i
	}
	out := make([]Define, 0, len(last))
	for i, d := range defines {
		if last[d.Name] == i {
			out = append(out, d)
		}
	}
	return out
}

// IsHashAlgorithm reports whether name is one of HashAlgorithms.
func IsHashAlgorithm(name string) bool {
	return slices.Contains(HashAlgorithms, name)
}

// SortedHashAlgorithms returns the algorithm names of the download in sorted order.
func (d Download) SortedHashAlgorithms() []string {
	algos := make([]string, 0, len(d.Hashes))
	for a := range d.Hashes {
		algos = append(algos, a)
	}
	sort.Strings(algos)
	return algos
}

// ContentProjects returns the projects named by workspace.content, in
// content order. Names without a project record are skipped.
func (s *Spec) ContentProjects() []*Project {
	projects := make([]*Project, 0, len(s.Workspace.Content))
	for _, name := range s.Workspace.Content {
		if p, ok := s.Projects[name]; ok {
			projects = append(projects, p)
		}
	}
	return projects
}

// IsContent reports whether name is listed in workspace.content.
func (s *Spec) IsContent(name string) bool {
	return slices.Contains(s.Workspace.Content, name)
}

// HookMatrix returns the resolved matrix for a hook point, or nil.
func (p *Project) HookMatrix(point HookPoint) Matrix[string] {
	if p.Hooks == nil {
		return nil
	}
	return p.Hooks[point]
}
