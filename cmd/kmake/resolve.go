// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"time"

	"kmake-cli/internal/pipeline"
	"kmake-cli/internal/subst"
	"kmake-cli/pkg/workspace"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type (
	// buildFlags are the flags shared by resolve and check. Only flags the
	// user set override the configuration.
	buildFlags struct {
		template            string
		output              string
		archs               []string
		configs             []string
		defines             []string
		libs                []string
		includePaths        []string
		libPaths            []string
		noDownloadCache     bool
		noCheckCache        bool
		inputCache          bool
		skipHooks           bool
		skipAssets          bool
		noClean             bool
		downloadConcurrency int
		downloadTimeout     time.Duration
		checkTimeout        time.Duration
	}

	// resolvedOutput is what `kmake resolve` prints.
	resolvedOutput struct {
		Document   string   `yaml:"document"`
		OutputDir  string   `yaml:"outputDir"`
		BuildOrder []string `yaml:"buildOrder"`
		Checks     []string `yaml:"checks,omitempty"`

		workspace.Spec `yaml:",inline"`
	}
)

func newResolveCommand(a *app) *cobra.Command {
	var (
		flags     buildFlags
		watchMode bool
	)

	cmd := &cobra.Command{
		Use:   "resolve [project]",
		Short: "Resolve a workspace and print the result",
		Long: `Resolve a workspace and print the result as YAML.

[project] is a workspace document or the directory that holds one
(kmake.yml, kmake.yaml, kmake.toml or kmake.cue). It defaults to the
current directory.

Resolution loads and merges imports, substitutes variables and inputs,
selects the platform matrix, orders projects by dependency, fetches
downloads, runs configuration checks and expands sources and assets.

With --watch, kmake keeps running and resolves again whenever a workspace
document or source file changes.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bc, err := a.buildContext(cmd, &flags, projectArg(args))
			if err != nil {
				return a.fail(err)
			}

			resolve := func(ctx context.Context) error {
				res, err := a.newPipeline().Run(ctx, bc)
				if err != nil {
					return a.fail(err)
				}
				a.printWarnings(res.Warnings)
				return printResolved(a, res)
			}

			err = resolve(cmd.Context())
			if !watchMode {
				return err
			}
			return a.watchWorkspace(cmd.Context(), bc, resolve)
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVarP(&watchMode, "watch", "w", false, "resolve again whenever workspace documents or sources change")
	return cmd
}

func projectArg(args []string) string {
	if len(args) == 0 {
		return "."
	}
	return args[0]
}

func (f *buildFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.template, "template", "t", "", "project-file template (vs2019, xcodeMac, makefile or an alias)")
	fs.StringVarP(&f.output, "output", "o", "", "output directory, relative to the workspace directory")
	fs.StringSliceVarP(&f.archs, "arch", "a", nil, "restrict to these architectures")
	fs.StringSliceVarP(&f.configs, "build-config", "c", nil, "restrict to these configurations (release, debug)")
	fs.StringArrayVarP(&f.defines, "define", "D", nil, "add a define to every content project (NAME or NAME=VALUE)")
	fs.StringArrayVar(&f.libs, "lib", nil, "add a dependency to every content project")
	fs.StringArrayVar(&f.includePaths, "includePath", nil, "add an include path to every content project")
	fs.StringArrayVar(&f.libPaths, "libPath", nil, "add a library path to every content project")
	fs.BoolVar(&f.noDownloadCache, "no-download-cache", false, "fetch downloads even when cached")
	fs.BoolVar(&f.noCheckCache, "no-check-cache", false, "rebuild checks even when cached")
	fs.BoolVar(&f.inputCache, "input-cache", false, "reuse answers to interactive inputs")
	fs.BoolVar(&f.skipHooks, "skip-hooks", false, "do not run beforePrepare and afterPrepare hooks")
	fs.BoolVar(&f.skipAssets, "skip-assets", false, "do not resolve project assets")
	fs.BoolVar(&f.noClean, "no-clean", false, "keep the existing output directory")
	fs.IntVar(&f.downloadConcurrency, "download-concurrency", 0, "maximum parallel downloads")
	fs.DurationVar(&f.downloadTimeout, "download-timeout", 0, "timeout for a single download")
	fs.DurationVar(&f.checkTimeout, "check-timeout", 0, "timeout for a single check build")
}

// buildContext layers configuration and then the flags the user set over
// the pipeline defaults.
func (a *app) buildContext(cmd *cobra.Command, f *buildFlags, path string) (pipeline.BuildContext, error) {
	cfg := a.cfg
	bc := pipeline.DefaultBuildContext(path)

	tmpl, err := workspace.ParseTemplate(cfg.Template)
	if err != nil {
		return bc, err
	}
	bc.Template = tmpl
	if cfg.Output != "" {
		bc.Output = cfg.Output
	}
	bc.Verbose = a.verbose
	bc.CleanOutputDir = cfg.CleanOutputDir
	bc.UseDownloadCache = cfg.UseDownloadCache
	bc.UseCheckCache = cfg.UseCheckCache
	bc.UseInputCache = cfg.UseInputCache
	bc.SkipAssets = cfg.SkipAssets
	bc.SkipHooks = cfg.SkipHooks
	if cfg.DownloadConcurrency > 0 {
		bc.DownloadConcurrency = cfg.DownloadConcurrency
	}
	if cfg.DownloadTimeout > 0 {
		bc.DownloadTimeout = cfg.DownloadTimeout
	}
	if cfg.CheckTimeout > 0 {
		bc.CheckTimeout = cfg.CheckTimeout
	}

	fs := cmd.Flags()
	if fs.Changed("template") {
		if bc.Template, err = workspace.ParseTemplate(f.template); err != nil {
			return bc, err
		}
	}
	if fs.Changed("output") {
		bc.Output = f.output
	}
	for _, arch := range f.archs {
		bc.Archs = append(bc.Archs, workspace.Arch(arch))
	}
	for _, c := range f.configs {
		bc.Configs = append(bc.Configs, workspace.Config(c))
	}
	bc.Defines = f.defines
	bc.Libs = f.libs
	bc.IncludePaths = f.includePaths
	bc.LibPaths = f.libPaths
	if fs.Changed("no-download-cache") {
		bc.UseDownloadCache = !f.noDownloadCache
	}
	if fs.Changed("no-check-cache") {
		bc.UseCheckCache = !f.noCheckCache
	}
	if fs.Changed("input-cache") {
		bc.UseInputCache = f.inputCache
	}
	if fs.Changed("skip-hooks") {
		bc.SkipHooks = f.skipHooks
	}
	if fs.Changed("skip-assets") {
		bc.SkipAssets = f.skipAssets
	}
	if fs.Changed("no-clean") {
		bc.CleanOutputDir = !f.noClean
	}
	if fs.Changed("download-concurrency") {
		if f.downloadConcurrency < 1 {
			return bc, fmt.Errorf("--download-concurrency must be at least 1, got %d", f.downloadConcurrency)
		}
		bc.DownloadConcurrency = f.downloadConcurrency
	}
	if fs.Changed("download-timeout") {
		bc.DownloadTimeout = f.downloadTimeout
	}
	if fs.Changed("check-timeout") {
		bc.CheckTimeout = f.checkTimeout
	}

	return bc, nil
}

func (a *app) newPipelineOptions() []pipeline.Option {
	return []pipeline.Option{
		pipeline.WithLogger(a.logger),
		pipeline.WithPrompter(subst.NewLinePrompter(a.stdin, a.stderr)),
	}
}

func (a *app) printWarnings(warnings []workspace.ResolutionWarning) {
	for _, w := range warnings {
		fmt.Fprintf(a.stderr, "%s %s\n", WarningStyle.Render("!"), w)
	}
}

func printResolved(a *app, res *pipeline.Result) error {
	out := resolvedOutput{
		Document:   res.DocumentPath,
		OutputDir:  res.OutputDir,
		BuildOrder: res.BuildOrder,
		Spec:       *res.Spec,
	}
	for _, o := range res.Checks {
		out.Checks = append(out.Checks, fmt.Sprintf("%s=%t", o.Name, o.Passed))
	}

	enc := yaml.NewEncoder(a.stdout)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode resolved workspace: %w", err)
	}
	return enc.Close()
}
