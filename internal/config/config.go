// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"kmake-cli/internal/issue"
	"kmake-cli/pkg/cueutil"
)

const (
	// AppName is the application name.
	AppName = "kmake"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment variables that override config keys.
	EnvPrefix = "KMAKE"
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the kmake configuration directory under the XDG config home.
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Load reads the configuration using the default locations.
func Load(ctx context.Context) (*Config, string, error) {
	return loadWithOptions(ctx, LoadOptions{})
}

// loadWithOptions performs option-driven config loading. It returns the
// loaded config and the path of the file it came from, if any.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath := ""

	// A file given with --config is used exclusively.
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithIssue(issue.ConfigLoadFailedId).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'kmake config show' to see the default configuration").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		resolvedPath = opts.ConfigFilePath
	} else {
		cfgDir := opts.ConfigDirPath
		if cfgDir == "" {
			cfgDir = ConfigDir()
		}
		for _, candidate := range []string{
			filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt),
			ConfigFileName + "." + ConfigFileExt,
		} {
			if fileExists(candidate) {
				resolvedPath = candidate
				break
			}
		}
	}

	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(resolvedPath).
				WithIssue(issue.ConfigLoadFailedId).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	if ok, errs := cfg.IsValid(); !ok {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithIssue(issue.ConfigLoadFailedId).
			WithSuggestion("Check " + EnvPrefix + "_* environment variables for typos").
			Wrap(errors.Join(errs...)).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

func setDefaults(v *viper.Viper) {
	defaults := DefaultConfig()
	v.SetDefault("template", defaults.Template)
	v.SetDefault("output", defaults.Output)
	v.SetDefault("verbose", defaults.Verbose)
	v.SetDefault("use_download_cache", defaults.UseDownloadCache)
	v.SetDefault("use_check_cache", defaults.UseCheckCache)
	v.SetDefault("use_input_cache", defaults.UseInputCache)
	v.SetDefault("clean_output_dir", defaults.CleanOutputDir)
	v.SetDefault("skip_assets", defaults.SkipAssets)
	v.SetDefault("skip_hooks", defaults.SkipHooks)
	v.SetDefault("download_concurrency", defaults.DownloadConcurrency)
	v.SetDefault("download_timeout", defaults.DownloadTimeout)
	v.SetDefault("check_timeout", defaults.CheckTimeout)
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper.
//
// Note: This uses manual CUE parsing instead of cueutil.ParseAndDecode because
// the result is merged into Viper's config map rather than decoded into a
// struct, and every field is optional.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
		return err
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return cueutil.FormatError(userValue.Err(), path)
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return cueutil.FormatError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return cueutil.FormatError(err, path)
	}

	// Merge into Viper (preserves defaults, allows env overrides)
	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// GenerateCUE generates a CUE representation of the configuration
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// kmake configuration file\n\n")

	fmt.Fprintf(&sb, "template: %q\n", cfg.Template)
	fmt.Fprintf(&sb, "output: %q\n", cfg.Output)
	fmt.Fprintf(&sb, "verbose: %v\n", cfg.Verbose)

	sb.WriteString("\n// caches\n")
	fmt.Fprintf(&sb, "use_download_cache: %v\n", cfg.UseDownloadCache)
	fmt.Fprintf(&sb, "use_check_cache: %v\n", cfg.UseCheckCache)
	fmt.Fprintf(&sb, "use_input_cache: %v\n", cfg.UseInputCache)

	sb.WriteString("\n")
	fmt.Fprintf(&sb, "clean_output_dir: %v\n", cfg.CleanOutputDir)
	fmt.Fprintf(&sb, "skip_assets: %v\n", cfg.SkipAssets)
	fmt.Fprintf(&sb, "skip_hooks: %v\n", cfg.SkipHooks)

	sb.WriteString("\n")
	fmt.Fprintf(&sb, "download_concurrency: %d\n", cfg.DownloadConcurrency)
	fmt.Fprintf(&sb, "download_timeout: %q\n", cfg.DownloadTimeout.String())
	fmt.Fprintf(&sb, "check_timeout: %q\n", cfg.CheckTimeout.String())

	return sb.String()
}
