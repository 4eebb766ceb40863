// SPDX-License-Identifier: MPL-2.0

// Package deps classifies project dependencies as workspace projects or
// external libraries, propagates include paths between workspace projects,
// makes declared search paths absolute, and computes the build order.
package deps

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/charmbracelet/log"

	"kmake-cli/internal/dag"
	"kmake-cli/internal/matrix"
	"kmake-cli/pkg/workspace"
)

// Stage is the warning stage name reported by the resolver.
const Stage = "dependencies"

// ErrUnsupportedDependency is returned when a workspace dependency cannot be
// linked against or embedded.
var ErrUnsupportedDependency = errors.New("unsupported dependency output type")

type (
	// Resolver resolves the dependencies of a Spec in place.
	Resolver struct {
		logger *log.Logger
		exists func(path string) bool
	}

	// Option configures a Resolver.
	Option func(*Resolver)

	// Result is the outcome of Resolve.
	Result struct {
		// BuildOrder lists content projects with dependencies first. Ties keep
		// workspace content order.
		BuildOrder []string
		Warnings   []workspace.ResolutionWarning
	}

	// UnsupportedDependencyError reports a workspace dependency whose output
	// type produces nothing to link against.
	UnsupportedDependencyError struct {
		Project    string
		Dependency string
		OutputType workspace.OutputType
	}
)

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a Resolver.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		logger: log.New(io.Discard),
		exists: pathExists,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (e *UnsupportedDependencyError) Error() string {
	return fmt.Sprintf("project %q depends on %q whose output type %q cannot be linked or embedded",
		e.Project, e.Dependency, e.OutputType)
}

// Unwrap returns ErrUnsupportedDependency for errors.Is() compatibility.
func (e *UnsupportedDependencyError) Unwrap() error { return ErrUnsupportedDependency }

// Resolve rewrites the dependency, include path and library path matrices of
// every project in spec, then orders the content projects.
//
// A dependency naming a workspace content project is kept as is and adds the
// relative path from the dependent to the dependency to includePaths. Other
// entries are rewritten to a normalized path when workingDir/entry exists and
// are left as library names otherwise. Declared relative include and library
// paths of content projects are made absolute against the project directory.
func (r *Resolver) Resolve(spec *workspace.Spec) (*Result, error) {
	graph := dag.New()
	for _, name := range spec.Workspace.Content {
		graph.AddNode(name)
	}

	var (
		errs     []error
		warnings []workspace.ResolutionWarning
	)
	names := make([]string, 0, len(spec.Projects))
	for name := range spec.Projects {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		p := spec.Projects[name]

		if spec.IsContent(name) {
			absolutize(p.WorkingDir, p.IncludePaths)
			absolutize(p.WorkingDir, p.LibPaths)
		}

		if err := r.linkable(spec, p, p.Dependencies, matrix.FieldDependencies, graph); err != nil {
			errs = append(errs, err)
		}
		if err := r.linkable(spec, p, p.EmbedDependencies, matrix.FieldEmbedDependencies, graph); err != nil {
			errs = append(errs, err)
		}

		warnings = append(warnings, r.resolveDependencies(spec, p)...)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	order, err := graph.BuildOrder()
	if err != nil {
		return nil, &workspace.ValidationError{Field: matrix.FieldDependencies, Reason: "workspace dependencies must not form a cycle", Cause: err}
	}
	r.logger.Debug("build order", "projects", order)
	return &Result{BuildOrder: order, Warnings: warnings}, nil
}

// linkable checks that every workspace dependency in m can be linked and
// records the graph edges of content projects.
func (r *Resolver) linkable(spec *workspace.Spec, p *workspace.Project, m workspace.Matrix[string], field string, graph *dag.Graph) error {
	seen := map[string]bool{}
	var errs []error
	m.Each(spec.Archs, spec.Configs, func(_ workspace.Arch, _ workspace.Config, entries []string) {
		for _, entry := range entries {
			dep, ok := workspaceDependency(spec, entry)
			if !ok || seen[entry] {
				continue
			}
			seen[entry] = true

			if !dep.OutputType.Linkable() {
				err := &UnsupportedDependencyError{Project: p.Name, Dependency: entry, OutputType: dep.OutputType}
				r.logger.Error("dependency", "project", p.Name, "field", field, "err", err)
				errs = append(errs, &workspace.ValidationError{Project: p.Name, Field: field, Cause: err})
				continue
			}
			if spec.IsContent(p.Name) {
				graph.AddDependency(p.Name, entry)
			}
		}
	})
	return errors.Join(errs...)
}

func (r *Resolver) resolveDependencies(spec *workspace.Spec, p *workspace.Project) []workspace.ResolutionWarning {
	var warnings []workspace.ResolutionWarning
	relative := map[string]string{}

	p.Dependencies.Each(spec.Archs, spec.Configs, func(a workspace.Arch, c workspace.Config, entries []string) {
		for i, entry := range entries {
			dep, ok := workspaceDependency(spec, entry)
			if !ok {
				candidate := filepath.Join(p.WorkingDir, entry)
				if p.WorkingDir != "" && r.exists(candidate) {
					entries[i] = normalize(candidate)
				}
				continue
			}

			rel, cached := relative[entry]
			if !cached {
				var err error
				rel, err = RelativePath(p.WorkingDir, dep.WorkingDir)
				if err != nil {
					r.logger.Warn("include path not propagated", "project", p.Name, "dependency", entry, "err", err)
					warnings = append(warnings, workspace.ResolutionWarning{
						Stage:   Stage,
						Subject: p.Name,
						Message: "include path to " + entry + " not propagated: " + err.Error(),
					})
				}
				relative[entry] = rel
			}
			if rel != "" && !slices.Contains(p.IncludePaths.At(a, c), rel) {
				p.IncludePaths.Append(a, c, rel)
			}
		}
	})
	return warnings
}

func workspaceDependency(spec *workspace.Spec, entry string) (*workspace.Project, bool) {
	if !spec.IsContent(entry) {
		return nil, false
	}
	dep, ok := spec.Projects[entry]
	return dep, ok
}

// RelativePath returns the forward-slash path from dir to target.
func RelativePath(dir, target string) (string, error) {
	rel, err := filepath.Rel(dir, target)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

func absolutize(dir string, m workspace.Matrix[string]) {
	if dir == "" {
		return
	}
	m.Map(func(path string) string {
		if path == "" || filepath.IsAbs(path) {
			return path
		}
		return normalize(filepath.Join(dir, path))
	})
}

func normalize(path string) string {
	return filepath.ToSlash(filepath.Clean(path))
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
