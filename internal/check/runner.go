// SPDX-License-Identifier: MPL-2.0

package check

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/charmbracelet/log"

	"kmake-cli/pkg/workspace"
)

// Stage is the warning stage name reported by the runner.
const Stage = "checks"

type (
	// Runner runs the check stage.
	Runner struct {
		builder    Builder
		logger     *log.Logger
		cachePath  string
		useCache   bool
		scratchDir string
		timeout    time.Duration
	}

	// Option configures a Runner.
	Option func(*Runner)

	// Outcome is the result of one check.
	Outcome struct {
		Name   string
		Passed bool
		Cached bool
	}

	// Result is the outcome of Run.
	Result struct {
		// Outcomes follow check declaration order.
		Outcomes []Outcome
		// Built counts probes that were built in this run.
		Built    int
		Warnings []workspace.ResolutionWarning
	}
)

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithCache sets the cache file location and whether recorded results may be
// reused. The file is rewritten after every run either way.
func WithCache(path string, use bool) Option {
	return func(r *Runner) {
		r.cachePath = path
		r.useCache = use
	}
}

// WithScratchDir sets the directory probes are built in.
func WithScratchDir(dir string) Option {
	return func(r *Runner) { r.scratchDir = dir }
}

// WithTimeout bounds every single probe build. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

// New creates a Runner that builds probes with b.
func New(b Builder, opts ...Option) *Runner {
	r := &Runner{
		builder:    b,
		logger:     log.New(io.Discard),
		scratchDir: filepath.Join(os.TempDir(), "kmake", "check"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Defines returns one NAME=true|false define per outcome.
func (res *Result) Defines() []workspace.Define {
	defines := make([]workspace.Define, 0, len(res.Outcomes))
	for _, o := range res.Outcomes {
		defines = append(defines, workspace.Define{Name: o.Name, Value: strconv.FormatBool(o.Passed), HasValue: true})
	}
	return defines
}

// Apply appends defines to every content project, for every arch and config.
func Apply(spec *workspace.Spec, defines []workspace.Define) {
	if len(defines) == 0 {
		return
	}
	for _, p := range spec.ContentProjects() {
		if p.Defines == nil {
			p.Defines = workspace.NewMatrix[workspace.Define](spec.Archs, spec.Configs)
		}
		p.Defines.AppendAll(defines...)
	}
}

// Run evaluates checks in order. Relative probe paths are resolved against
// projectDir. A probe that fails to build or times out yields false; only
// cancellation of ctx and filesystem failures abort the run.
func (r *Runner) Run(ctx context.Context, projectDir string, checks []workspace.Check) (_ *Result, err error) {
	previous := Cache{}
	if r.useCache && r.cachePath != "" {
		if previous, err = LoadCache(r.cachePath); err != nil {
			return nil, err
		}
	}

	current := Cache{}
	defer func() {
		if r.cachePath == "" {
			return
		}
		if saveErr := current.Save(r.cachePath); saveErr != nil {
			err = errors.Join(err, saveErr)
		}
	}()

	res := &Result{Outcomes: make([]Outcome, 0, len(checks))}
	for _, c := range checks {
		key, err := Key(c)
		if err != nil {
			return nil, err
		}

		if passed, ok := previous[key]; r.useCache && ok {
			r.logger.Info("check", "name", c.Name, "result", passed, "cached", true)
			res.Outcomes = append(res.Outcomes, Outcome{Name: c.Name, Passed: passed, Cached: true})
			current[key] = passed
			continue
		}

		passed, warning, err := r.probe(ctx, projectDir, c)
		if err != nil {
			return nil, err
		}
		if warning != "" {
			res.Warnings = append(res.Warnings, workspace.ResolutionWarning{Stage: Stage, Subject: c.Name, Message: warning})
		}
		res.Built++
		r.logger.Info("check", "name", c.Name, "result", passed)
		res.Outcomes = append(res.Outcomes, Outcome{Name: c.Name, Passed: passed})
		current[key] = passed
	}
	return res, nil
}

func (r *Runner) probe(ctx context.Context, projectDir string, c workspace.Check) (bool, string, error) {
	if err := r.prepare(projectDir, c); err != nil {
		return false, "", err
	}

	bctx, cancel := ctx, context.CancelFunc(func() {})
	if r.timeout > 0 {
		bctx, cancel = context.WithTimeout(ctx, r.timeout)
	}
	defer cancel()

	passed, err := r.builder.Build(bctx, r.scratchDir)
	switch {
	case err == nil:
		if !passed {
			r.logger.Error("check probe failed to build", "name", c.Name)
		}
		return passed, "", nil
	case ctx.Err() != nil:
		return false, "", ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		r.logger.Error("check probe timed out", "name", c.Name, "timeout", r.timeout)
		return false, fmt.Sprintf("probe timed out after %s", r.timeout), nil
	default:
		return false, "", fmt.Errorf("check %q: %w", c.Name, err)
	}
}

// prepare recreates the scratch directory and writes the probe into it.
func (r *Runner) prepare(projectDir string, c workspace.Check) error {
	if err := os.RemoveAll(r.scratchDir); err != nil {
		return fmt.Errorf("clearing check directory: %w", err)
	}
	if err := os.MkdirAll(r.scratchDir, 0o755); err != nil {
		return fmt.Errorf("creating check directory: %w", err)
	}

	content := []byte(c.Probe)
	path := c.Probe
	if !filepath.IsAbs(path) {
		path = filepath.Join(projectDir, path)
	}
	if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading probe %s: %w", path, err)
		}
		content = data
	}
	if err := os.WriteFile(filepath.Join(r.scratchDir, ProbeFile), content, 0o644); err != nil {
		return fmt.Errorf("writing probe: %w", err)
	}
	return nil
}
