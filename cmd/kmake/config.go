// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"kmake-cli/internal/config"
	"kmake-cli/internal/issue"

	"github.com/spf13/cobra"
)

// newConfigCommand creates the `kmake config` command tree.
func newConfigCommand(a *app) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage kmake configuration",
		Long: `Manage kmake configuration.

Configuration is stored in:
  - Linux: ~/.config/kmake/config.cue
  - macOS: ~/Library/Application Support/kmake/config.cue
  - Windows: %LOCALAPPDATA%\kmake\config.cue

Every key can be overridden with a KMAKE_ environment variable,
for example KMAKE_DOWNLOAD_CONCURRENCY=4.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(a.stdout, TitleStyle.Render("Configuration"))
			fmt.Fprintln(a.stdout, SubtitleStyle.Render("  file: "+configPath(a)))
			fmt.Fprintln(a.stdout)
			fmt.Fprint(a.stdout, config.GenerateCUE(a.cfg))
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output raw configuration as CUE",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprint(a.stdout, config.GenerateCUE(a.cfg))
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(a.stdout, configPath(a))
			return nil
		},
		Annotations: map[string]string{annotationConfig: configOptional},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return initConfig(a)
		},
		Annotations: map[string]string{annotationConfig: configOptional},
	})

	return cfgCmd
}

func configPath(a *app) string {
	if a.cfgFile != "" {
		return a.cfgFile
	}
	return filepath.Join(config.ConfigDir(), config.ConfigFileName+"."+config.ConfigFileExt)
}

// initConfig writes the default configuration unless a file already exists.
func initConfig(a *app) error {
	path := configPath(a)
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(a.stdout, "%s Configuration already exists at %s\n", WarningStyle.Render("!"), path)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return a.fail(issue.NewErrorContext().
			WithOperation("create config directory").
			WithResource(filepath.Dir(path)).
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(err).
			BuildError())
	}
	if err := os.WriteFile(path, []byte(config.GenerateCUE(config.DefaultConfig())), 0o644); err != nil {
		return a.fail(issue.NewErrorContext().
			WithOperation("write config file").
			WithResource(path).
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(err).
			BuildError())
	}

	fmt.Fprintf(a.stdout, "%s Created %s\n", SuccessStyle.Render("✓"), path)
	return nil
}
