// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"kmake-cli/pkg/workspace"
)

const (
	// DefaultOutput is the output directory used when none is configured.
	DefaultOutput = "out"
	// DefaultDownloadTimeout bounds a single artifact fetch.
	DefaultDownloadTimeout = 10 * time.Minute
	// DefaultCheckTimeout bounds a single compile probe.
	DefaultCheckTimeout = 2 * time.Minute
)

var (
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrInvalidConcurrency is returned for a download concurrency below 1.
	ErrInvalidConcurrency = errors.New("invalid download concurrency")
	// ErrInvalidTimeout is returned for a negative timeout.
	ErrInvalidTimeout = errors.New("invalid timeout")
)

type (
	// Config holds the tool configuration. Every field has a default, so a
	// missing config file is not an error.
	Config struct {
		// Template is the default project-file template name or alias.
		Template string `json:"template" mapstructure:"template"`
		// Output is the output directory relative to the workspace directory.
		Output  string `json:"output" mapstructure:"output"`
		Verbose bool   `json:"verbose" mapstructure:"verbose"`

		UseDownloadCache bool `json:"use_download_cache" mapstructure:"use_download_cache"`
		UseCheckCache    bool `json:"use_check_cache" mapstructure:"use_check_cache"`
		UseInputCache    bool `json:"use_input_cache" mapstructure:"use_input_cache"`
		CleanOutputDir   bool `json:"clean_output_dir" mapstructure:"clean_output_dir"`
		SkipAssets       bool `json:"skip_assets" mapstructure:"skip_assets"`
		SkipHooks        bool `json:"skip_hooks" mapstructure:"skip_hooks"`

		// DownloadConcurrency bounds the number of parallel downloads.
		DownloadConcurrency int           `json:"download_concurrency" mapstructure:"download_concurrency"`
		DownloadTimeout     time.Duration `json:"download_timeout" mapstructure:"download_timeout"`
		CheckTimeout        time.Duration `json:"check_timeout" mapstructure:"check_timeout"`
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors.
	InvalidConfigError struct {
		FieldErrors []error
	}
)

// DefaultConfig returns the configuration used when nothing is configured.
func DefaultConfig() *Config {
	return &Config{
		Template:            workspace.DefaultTemplate(runtime.GOOS).String(),
		Output:              DefaultOutput,
		UseDownloadCache:    true,
		UseCheckCache:       true,
		CleanOutputDir:      true,
		DownloadConcurrency: 1,
		DownloadTimeout:     DefaultDownloadTimeout,
		CheckTimeout:        DefaultCheckTimeout,
	}
}

// IsValid returns whether the Config is internally consistent, and the
// field errors if it is not.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if _, err := workspace.ParseTemplate(c.Template); err != nil {
		errs = append(errs, err)
	}
	if c.DownloadConcurrency < 1 {
		errs = append(errs, fmt.Errorf("%w: %d", ErrInvalidConcurrency, c.DownloadConcurrency))
	}
	if c.DownloadTimeout < 0 {
		errs = append(errs, fmt.Errorf("%w: download_timeout %s", ErrInvalidTimeout, c.DownloadTimeout))
	}
	if c.CheckTimeout < 0 {
		errs = append(errs, fmt.Errorf("%w: check_timeout %s", ErrInvalidTimeout, c.CheckTimeout))
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidConfig and the field errors for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}
