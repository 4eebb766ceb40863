// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	goruntime "runtime"

	"github.com/charmbracelet/log"

	"kmake-cli/internal/check"
	"kmake-cli/internal/deps"
	"kmake-cli/internal/download"
	"kmake-cli/internal/loader"
	"kmake-cli/internal/matrix"
	"kmake-cli/internal/runtime"
	"kmake-cli/internal/subst"
	"kmake-cli/pkg/workspace"
)

type (
	// Pipeline resolves workspaces. It holds the capabilities the stages
	// use and no per-run state, so one Pipeline may serve several runs.
	Pipeline struct {
		logger   *log.Logger
		prompter subst.Prompter
		fetcher  download.Fetcher
		builder  check.Builder
		runner   runtime.Runner
	}

	// Option configures a Pipeline.
	Option func(*Pipeline)

	// Result is a resolved workspace.
	Result struct {
		Spec *workspace.Spec
		// DocumentPath is the workspace document that was loaded.
		DocumentPath string
		ProjectDir   string
		OutputDir    string
		// BuildOrder lists content projects with dependencies first.
		BuildOrder []string
		Checks     []check.Outcome
		Warnings   []workspace.ResolutionWarning
	}

	// run is the state of one pipeline run.
	run struct {
		*Pipeline
		// logger shadows the Pipeline's so a run can raise its own level.
		logger     *log.Logger
		bc         BuildContext
		goos       string
		docPath    string
		projectDir string
		outputDir  string
		spec       *workspace.Spec
		buildOrder []string
		checks     []check.Outcome
		warnings   []workspace.ResolutionWarning
	}
)

// WithLogger sets the logger passed to every stage.
func WithLogger(logger *log.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithPrompter sets how input variables are asked for.
func WithPrompter(pr subst.Prompter) Option {
	return func(p *Pipeline) { p.prompter = pr }
}

// WithFetcher sets the network capability of the download stage.
func WithFetcher(f download.Fetcher) Option {
	return func(p *Pipeline) { p.fetcher = f }
}

// WithBuilder sets the probe builder of the check stage. By default probes
// are compiled with the workspace's MK_CC setting.
func WithBuilder(b check.Builder) Option {
	return func(p *Pipeline) { p.builder = b }
}

// WithRunner sets the shell used for hooks, post-commands and probe builds.
func WithRunner(r runtime.Runner) Option {
	return func(p *Pipeline) { p.runner = r }
}

// New creates a Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		logger:   log.New(io.Discard),
		prompter: subst.NewLinePrompter(os.Stdin, os.Stderr),
		fetcher:  download.NewHTTPFetcher(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.runner == nil {
		p.runner = runtime.NewShell(p.logger)
	}
	return p
}

// Run executes every stage and returns the resolved workspace.
func (p *Pipeline) Run(ctx context.Context, bc BuildContext) (*Result, error) {
	r, err := p.resolve(ctx, bc)
	if err != nil {
		return nil, err
	}

	if err := r.prepareOutputDir(); err != nil {
		return nil, err
	}

	r.logger.Info("running beforePrepare hooks")
	if err := r.runHooks(ctx, workspace.HookBeforePrepare); err != nil {
		return nil, err
	}

	r.logger.Info("processing downloads")
	if err := r.downloads(ctx); err != nil {
		return nil, err
	}

	r.logger.Info("running checks")
	if err := r.runChecks(ctx); err != nil {
		return nil, err
	}

	r.logger.Info("running afterPrepare hooks")
	if err := r.runHooks(ctx, workspace.HookAfterPrepare); err != nil {
		return nil, err
	}

	for _, proj := range r.spec.ContentProjects() {
		r.expandSources(proj)
		r.resolveAssets(proj)
		r.mergeSettings(proj)
	}

	return r.result(), nil
}

// Checks resolves the workspace and runs only the check stage.
func (p *Pipeline) Checks(ctx context.Context, bc BuildContext) (*Result, error) {
	r, err := p.resolve(ctx, bc)
	if err != nil {
		return nil, err
	}
	if err := r.runChecks(ctx); err != nil {
		return nil, err
	}
	return r.result(), nil
}

// resolve runs the stages that only shape data: load, overrides,
// substitution, matrix and dependencies.
func (p *Pipeline) resolve(ctx context.Context, bc BuildContext) (*run, error) {
	r := &run{Pipeline: p, logger: p.logger, bc: bc, goos: bc.GOOS}
	if r.goos == "" {
		r.goos = goruntime.GOOS
	}
	if r.bc.Template == "" {
		r.bc.Template = workspace.DefaultTemplate(r.goos)
	}

	docPath, err := loader.ResolvePath(bc.ProjectPath)
	if err != nil {
		return nil, err
	}
	r.docPath = docPath
	r.projectDir = filepath.Dir(docPath)
	r.outputDir = bc.Output
	if !filepath.IsAbs(r.outputDir) {
		r.outputDir = filepath.Join(r.projectDir, r.outputDir)
	}

	r.logger.Info("loading workspace", "path", docPath)
	tree, err := loader.New(loader.WithLogger(r.logger)).Load(ctx, docPath)
	if err != nil {
		return nil, err
	}
	if err := workspace.ValidateTree(tree, docPath); err != nil {
		return nil, err
	}

	if settings, ok := tree.WorkspaceBlock()["settings"].(map[string]any); ok {
		if applied := r.bc.applyWorkspaceSettings(settings); len(applied) > 0 {
			r.logger.Debug("workspace settings override build flags", "keys", applied)
		}
		if r.bc.Verbose && r.logger.GetLevel() > log.DebugLevel {
			r.logger = r.logger.With()
			r.logger.SetLevel(log.DebugLevel)
		}
	}

	resolver, err := matrix.New(r.bc.Template,
		matrix.WithArchs(r.bc.Archs...),
		matrix.WithConfigs(r.bc.Configs...),
		matrix.WithLogger(r.logger))
	if err != nil {
		return nil, &workspace.ValidationError{Reason: "unknown template", Cause: err}
	}

	r.logger.Info("applying command line overrides")
	applyOverrides(tree, &r.bc, resolver.Platform())

	r.logger.Info("substituting variables")
	input := &subst.InputPass{
		Prompter:  p.prompter,
		CachePath: filepath.Join(r.projectDir, subst.InputCacheFile),
		UseCache:  r.bc.UseInputCache,
		Logger:    r.logger,
	}
	tree, err = subst.Run(ctx, tree, subst.DefaultPasses(input, r.bc.environ(), filepath.ToSlash(r.outputDir))...)
	if err != nil {
		return nil, err
	}

	r.logger.Info("resolving platform matrix", "template", r.bc.Template)
	spec, warnings, err := resolver.Resolve(tree)
	if err != nil {
		return nil, err
	}
	r.spec = spec
	r.warnings = append(r.warnings, warnings...)

	r.logger.Info("resolving dependencies")
	depResult, err := deps.New(deps.WithLogger(r.logger)).Resolve(spec)
	if err != nil {
		return nil, err
	}
	r.buildOrder = depResult.BuildOrder
	r.warnings = append(r.warnings, depResult.Warnings...)

	return r, nil
}

func (r *run) downloads(ctx context.Context) error {
	m := download.New(
		download.WithFetcher(r.fetcher),
		download.WithRunner(r.runner),
		download.WithLogger(r.logger),
		download.WithCache(filepath.Join(r.projectDir, download.CacheFile), r.bc.UseDownloadCache),
		download.WithConcurrency(r.bc.DownloadConcurrency),
		download.WithTimeout(r.bc.DownloadTimeout),
	)
	res, err := m.Run(ctx, r.spec)
	if err != nil {
		return err
	}
	r.logger.Debug("downloads done", "fetched", res.Fetched, "cached", res.Skipped)
	r.warnings = append(r.warnings, res.Warnings...)
	return nil
}

func (r *run) runChecks(ctx context.Context) error {
	builder := r.builder
	if builder == nil {
		builder = &check.CompilerBuilder{
			Runner:   r.runner,
			Compiler: r.setting("MK_CC", "g++"),
			Flags:    r.setting("MK_CPP_LANGUAGE_STANDARD", ""),
		}
	}
	runner := check.New(builder,
		check.WithLogger(r.logger),
		check.WithCache(filepath.Join(r.projectDir, check.CacheFile), r.bc.UseCheckCache),
		check.WithScratchDir(filepath.Join(r.outputDir, ".kmake", "check")),
		check.WithTimeout(r.bc.CheckTimeout),
	)
	res, err := runner.Run(ctx, r.projectDir, r.spec.Checks)
	if err != nil {
		return fmt.Errorf("checks: %w", err)
	}
	check.Apply(r.spec, res.Defines())
	r.checks = res.Outcomes
	r.warnings = append(r.warnings, res.Warnings...)
	return nil
}

func (r *run) warn(stage, subject, message string) {
	w := workspace.ResolutionWarning{Stage: stage, Subject: subject, Message: message}
	r.logger.Warn(message, "stage", stage, "subject", subject)
	r.warnings = append(r.warnings, w)
}

func (r *run) result() *Result {
	return &Result{
		Spec:         r.spec,
		DocumentPath: r.docPath,
		ProjectDir:   r.projectDir,
		OutputDir:    r.outputDir,
		BuildOrder:   r.buildOrder,
		Checks:       r.checks,
		Warnings:     r.warnings,
	}
}
