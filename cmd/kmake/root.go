// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for kmake.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"kmake-cli/internal/config"
	"kmake-cli/internal/issue"
	"kmake-cli/internal/pipeline"
	"kmake-cli/internal/runtime"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // set via -ldflags
var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

const (
	// annotationConfig marks commands that can run without a loadable config.
	annotationConfig = "kmake/config"
	configOptional   = "optional"
)

type (
	// app carries the state shared by all subcommands of one invocation.
	app struct {
		provider config.Provider
		stdin    io.Reader
		stdout   io.Writer
		stderr   io.Writer
		// pipelineOptions are appended after the logger and prompter options,
		// so tests can swap capabilities.
		pipelineOptions []pipeline.Option

		verbose bool
		cfgFile string
		cfg     *config.Config
		logger  *log.Logger
	}
)

func newApp() *app {
	return &app{
		provider: config.NewProvider(),
		stdin:    os.Stdin,
		stdout:   os.Stdout,
		stderr:   os.Stderr,
	}
}

// newRootCommand builds the command tree around a.
func newRootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "kmake",
		Short: "Resolve cross-platform C++ workspaces",
		Long: TitleStyle.Render("kmake") + SubtitleStyle.Render(" - Resolve cross-platform C++ workspaces") + `

kmake reads a workspace document (kmake.yml, kmake.toml or kmake.cue),
substitutes variables, selects the platform matrix, orders and links
projects, fetches declared downloads and runs configuration checks.
The resolved workspace is what project-file generators consume.

` + SubtitleStyle.Render("Examples:") + `
  kmake resolve                    Resolve the workspace in the current directory
  kmake resolve ./engine -t mk     Resolve for the makefile template
  kmake check                      Run configuration checks only
  kmake config show                Show current configuration`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context(), cmd.Annotations[annotationConfig] == configOptional)
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/kmake/config.cue)")

	rootCmd.AddCommand(newResolveCommand(a))
	rootCmd.AddCommand(newCheckCommand(a))
	rootCmd.AddCommand(newConfigCommand(a))

	rootCmd.SetIn(a.stdin)
	rootCmd.SetOut(a.stdout)
	rootCmd.SetErr(a.stderr)

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	// fang overrides rootCmd.Version, so the version goes through WithVersion.
	if err := fang.Execute(
		context.Background(),
		newRootCommand(newApp()),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(int(exitErr.Code))
		}
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger. A --verbose flag wins over
// the configured value. With optional set, a config that fails to load is
// reported and replaced by the defaults.
func (a *app) setup(ctx context.Context, optional bool) error {
	cfg, err := a.provider.Load(ctx, config.LoadOptions{ConfigFilePath: a.cfgFile})
	if err != nil {
		if !optional {
			return a.fail(err)
		}
		fmt.Fprintln(a.stderr, WarningStyle.Render("Warning: ")+formatErrorForDisplay(err, a.verbose))
		cfg = config.DefaultConfig()
	}
	a.cfg = cfg
	if cfg.Verbose {
		a.verbose = true
	}

	a.logger = log.NewWithOptions(a.stderr, log.Options{
		Prefix:          "kmake",
		ReportTimestamp: a.verbose,
	})
	if a.verbose {
		a.logger.SetLevel(log.DebugLevel)
	}
	return nil
}

func (a *app) newPipeline() *pipeline.Pipeline {
	return pipeline.New(append(a.newPipelineOptions(), a.pipelineOptions...)...)
}

// fail prints err with its catalog guidance and returns the ExitError the
// command should return.
func (a *app) fail(err error) error {
	ae := actionable(err)
	if ae.Issue != 0 {
		if i := issue.Get(ae.Issue); i != nil {
			if rendered, rerr := i.Render("dark"); rerr == nil {
				fmt.Fprint(a.stderr, rendered)
			}
		}
	}
	fmt.Fprintf(a.stderr, "%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(ae, a.verbose))

	code := runtime.ExitCode(1)
	var hookErr *runtime.HookError
	if errors.As(err, &hookErr) && hookErr.ExitCode > 0 {
		code = hookErr.ExitCode
	}
	return &ExitError{Code: code, Err: err}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
