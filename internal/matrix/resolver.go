// SPDX-License-Identifier: MPL-2.0

package matrix

import (
	"cmp"
	"errors"
	"io"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"

	"kmake-cli/pkg/workspace"
)

// Stage is the warning stage name reported by the resolver.
const Stage = "matrix"

const (
	rankGeneric = iota
	rankPlatform
	rankArch
)

const (
	rankAnyConfig = iota
	rankConfig
)

type (
	// Resolver turns a substituted workspace tree into a typed Spec for one
	// template and a set of active architectures and configurations.
	Resolver struct {
		platform workspace.Platform
		archs    []workspace.Arch
		configs  []workspace.Config
		logger   *log.Logger

		requested    []workspace.Arch
		requestedCfg []workspace.Config
		initial      []workspace.ResolutionWarning
	}

	// Option configures a Resolver.
	Option func(*Resolver)

	ranked struct {
		value    any
		archRank int
		cfgRank  int
	}

	// resolution carries the per-call state of Resolve.
	resolution struct {
		*Resolver
		warnings []workspace.ResolutionWarning
		badGlobs map[string]bool
	}
)

// WithArchs restricts the active architectures. Names the template does not
// support are dropped with a warning. An empty list keeps every supported arch.
func WithArchs(archs ...workspace.Arch) Option {
	return func(r *Resolver) { r.requested = archs }
}

// WithConfigs restricts the active configurations. Unknown names are dropped
// with a warning. An empty list keeps every configuration.
func WithConfigs(configs ...workspace.Config) Option {
	return func(r *Resolver) { r.requestedCfg = configs }
}

// WithLogger sets the logger used for resolution warnings.
func WithLogger(logger *log.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a Resolver for template.
func New(template workspace.Template, opts ...Option) (*Resolver, error) {
	platform, ok := workspace.PlatformOf(template)
	if !ok {
		return nil, &workspace.InvalidTemplateError{Value: string(template)}
	}

	r := &Resolver{
		platform: platform,
		logger:   log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, a := range r.requested {
		if platform.Supports(a) {
			if !slices.Contains(r.archs, a) {
				r.archs = append(r.archs, a)
			}
			continue
		}
		r.initial = append(r.initial, workspace.ResolutionWarning{
			Stage:   Stage,
			Subject: string(a),
			Message: "architecture not supported by template " + template.String() + ", ignored",
		})
	}
	if len(r.archs) == 0 {
		r.archs = platform.Archs
	}

	for _, c := range r.requestedCfg {
		if slices.Contains(workspace.Configurations, c) {
			if !slices.Contains(r.configs, c) {
				r.configs = append(r.configs, c)
			}
			continue
		}
		r.initial = append(r.initial, workspace.ResolutionWarning{
			Stage:   Stage,
			Subject: string(c),
			Message: "unknown configuration, ignored",
		})
	}
	if len(r.configs) == 0 {
		r.configs = slices.Clone(workspace.Configurations)
	}
	return r, nil
}

// Platform returns the platform the resolver targets.
func (r *Resolver) Platform() workspace.Platform { return r.platform }

// Archs returns the active architectures. The first one is the default target.
func (r *Resolver) Archs() []workspace.Arch { return slices.Clone(r.archs) }

// Configs returns the active configurations.
func (r *Resolver) Configs() []workspace.Config { return slices.Clone(r.configs) }

// Expand resolves f into one value list per active (arch, config) pair.
// Every pair is present in the result, with an empty list when nothing applies.
func (r *Resolver) Expand(f workspace.Field) workspace.Matrix[any] {
	res := r.begin()
	m := res.expand("", f)
	res.flush()
	return m
}

// Resolve converts tree into a Spec. Every matrix-capable field of every
// project is complete for the active dimensions. A field a project does not
// declare falls back to the workspace setting of the same name.
//
// Errors are ValidationErrors, joined when several records are invalid.
func (r *Resolver) Resolve(tree workspace.Tree) (*workspace.Spec, []workspace.ResolutionWarning, error) {
	res := r.begin()
	defer res.flush()

	spec := &workspace.Spec{
		Workspace: decodeWorkspace(tree.WorkspaceBlock()),
		Variables: decodeVariables(tree[workspace.KeyVariables]),
		Inputs:    stringList(tree[workspace.KeyInputs]),
		Checks:    decodeChecks(tree[workspace.KeyChecks]),
		Projects:  map[string]*workspace.Project{},
		Aux:       map[string]any{},
		Archs:     slices.Clone(r.archs),
		Configs:   slices.Clone(r.configs),
	}

	var errs []error
	for _, name := range tree.Records() {
		record, _ := tree.Record(name)
		if !workspace.IsProjectRecord(record) {
			spec.Aux[name] = workspace.CloneValue(record)
			continue
		}

		p, err := res.project(name, record, spec.Workspace.Settings)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		spec.Projects[name] = p
		spec.Checks = mergeChecks(spec.Checks, decodeChecks(record[fieldChecks]))
	}

	for _, name := range spec.Workspace.Content {
		if _, ok := spec.Projects[name]; ok {
			continue
		}
		reason := "listed in workspace content but no project record exists"
		if _, aux := spec.Aux[name]; aux {
			reason = "listed in workspace content but its type is not \"project\""
		}
		errs = append(errs, &workspace.ValidationError{Project: name, Reason: reason})
	}

	if len(errs) > 0 {
		return nil, slices.Clone(res.warnings), errors.Join(errs...)
	}
	return spec, slices.Clone(res.warnings), nil
}

func (r *Resolver) begin() *resolution {
	return &resolution{
		Resolver: r,
		warnings: slices.Clone(r.initial),
		badGlobs: map[string]bool{},
	}
}

func (res *resolution) flush() {
	for _, w := range res.warnings {
		res.logger.Warn(w.Message, "stage", w.Stage, "subject", w.Subject)
	}
}

func (res *resolution) warn(subject, message string) {
	res.warnings = append(res.warnings, workspace.ResolutionWarning{Stage: Stage, Subject: subject, Message: message})
}

func (res *resolution) expand(subject string, f workspace.Field) workspace.Matrix[any] {
	m := workspace.NewMatrix[any](res.archs, res.configs)
	for _, a := range res.archs {
		for _, c := range res.configs {
			var collected []ranked
			res.collect(subject, f.Items, a, c, rankGeneric, rankAnyConfig, &collected)

			slices.SortStableFunc(collected, func(x, y ranked) int {
				if x.cfgRank != y.cfgRank {
					return cmp.Compare(x.cfgRank, y.cfgRank)
				}
				return cmp.Compare(x.archRank, y.archRank)
			})

			values := make([]any, 0, len(collected))
			for _, item := range collected {
				values = append(values, item.value)
			}
			m.Set(a, c, values)
		}
	}
	return m
}

func (res *resolution) collect(subject string, items []any, a workspace.Arch, c workspace.Config, archRank, cfgRank int, out *[]ranked) {
	for _, item := range items {
		keyed, ok := item.(workspace.Keyed)
		if !ok {
			*out = append(*out, ranked{value: item, archRank: archRank, cfgRank: cfgRank})
			continue
		}

		ar, cr := archRank, cfgRank
		switch sel := keyed.Selector; sel.Kind {
		case workspace.SelectPlatform:
			if !res.matchPlatform(subject, sel.Value) {
				continue
			}
			ar = max(ar, rankPlatform)
		case workspace.SelectArch:
			if workspace.Arch(sel.Value) != a {
				continue
			}
			ar = rankArch
		case workspace.SelectConfig:
			if workspace.Config(sel.Value) != c {
				continue
			}
			cr = rankConfig
		}
		res.collect(subject, keyed.Items, a, c, ar, cr, out)
	}
}

// matchPlatform reports whether pattern matches the platform family name or
// the template name, ignoring case.
func (res *resolution) matchPlatform(subject, pattern string) bool {
	pattern = strings.ToLower(pattern)
	if !doublestar.ValidatePattern(pattern) {
		if !res.badGlobs[pattern] {
			res.badGlobs[pattern] = true
			res.warn(subject, "invalid platform pattern "+pattern+", ignored")
		}
		return false
	}

	for _, name := range []string{res.platform.Name, res.platform.Template.String()} {
		if ok, _ := doublestar.Match(pattern, strings.ToLower(name)); ok {
			return true
		}
	}
	return false
}
