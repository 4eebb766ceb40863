// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"kmake-cli/internal/issue"
	"kmake-cli/internal/testutil"
	"kmake-cli/pkg/workspace"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	if cfg.Template != workspace.DefaultTemplate(runtime.GOOS).String() {
		t.Errorf("Template = %q, want host default", cfg.Template)
	}
	if !cfg.UseDownloadCache || !cfg.UseCheckCache || cfg.UseInputCache {
		t.Errorf("cache defaults = %v/%v/%v, want true/true/false", cfg.UseDownloadCache, cfg.UseCheckCache, cfg.UseInputCache)
	}
	if !cfg.CleanOutputDir || cfg.SkipAssets || cfg.SkipHooks || cfg.Verbose {
		t.Errorf("flag defaults = %+v", cfg)
	}
	if cfg.DownloadConcurrency != 1 {
		t.Errorf("DownloadConcurrency = %d, want 1", cfg.DownloadConcurrency)
	}
	if cfg.DownloadTimeout != 10*time.Minute || cfg.CheckTimeout != 2*time.Minute {
		t.Errorf("timeouts = %s/%s, want 10m/2m", cfg.DownloadTimeout, cfg.CheckTimeout)
	}
	if ok, errs := cfg.IsValid(); !ok {
		t.Errorf("DefaultConfig().IsValid() = %v", errs)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	t.Parallel()

	cfg, path, err := loadWithOptions(t.Context(), LoadOptions{ConfigDirPath: t.TempDir()})
	if err != nil {
		t.Fatalf("loadWithOptions() error = %v", err)
	}
	if path != "" {
		t.Errorf("resolved path = %q, want none", path)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFromConfigDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.cue")
	testutil.WriteFile(t, cfgPath, `
template: "vs"
use_download_cache: false
download_concurrency: 4
download_timeout: "30s"
`)

	cfg, path, err := loadWithOptions(t.Context(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("loadWithOptions() error = %v", err)
	}
	if path != cfgPath {
		t.Errorf("resolved path = %q, want %q", path, cfgPath)
	}

	want := DefaultConfig()
	want.Template = "vs"
	want.UseDownloadCache = false
	want.DownloadConcurrency = 4
	want.DownloadTimeout = 30 * time.Second
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(dir, "config.cue"), `use_check_cache: false
download_concurrency: 2
`)
	t.Setenv("KMAKE_DOWNLOAD_CONCURRENCY", "8")
	t.Setenv("KMAKE_CHECK_TIMEOUT", "5s")

	cfg, _, err := loadWithOptions(t.Context(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("loadWithOptions() error = %v", err)
	}
	if cfg.DownloadConcurrency != 8 {
		t.Errorf("DownloadConcurrency = %d, want 8 from env", cfg.DownloadConcurrency)
	}
	if cfg.CheckTimeout != 5*time.Second {
		t.Errorf("CheckTimeout = %s, want 5s from env", cfg.CheckTimeout)
	}
	if cfg.UseCheckCache {
		t.Error("UseCheckCache = true, want false from file")
	}
}

func TestLoadInvalidFiles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{"syntax", "template: ["},
		{"unknown field", "colour: true\n"},
		{"wrong type", "verbose: \"yes\"\n"},
		{"concurrency bound", "download_concurrency: 0\n"},
		{"bad duration", "check_timeout: \"soon\"\n"},
		{"unknown template", "template: \"ninja\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfgPath := filepath.Join(t.TempDir(), "custom.cue")
			testutil.WriteFile(t, cfgPath, tt.content)

			_, _, err := loadWithOptions(t.Context(), LoadOptions{ConfigFilePath: cfgPath})
			if err == nil {
				t.Fatal("expected an error")
			}
			var ae *issue.ActionableError
			if !errors.As(err, &ae) {
				t.Fatalf("error = %T, want *issue.ActionableError", err)
			}
			if ae.Resource != cfgPath {
				t.Errorf("Resource = %q, want %q", ae.Resource, cfgPath)
			}
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, _, err := loadWithOptions(t.Context(), LoadOptions{ConfigFilePath: filepath.Join(t.TempDir(), "nope.cue")})
	if err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("error = %v, want config file not found", err)
	}
}

func TestLoadCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if _, err := NewProvider().Load(ctx, LoadOptions{ConfigDirPath: t.TempDir()}); err == nil {
		t.Error("expected an error for a canceled context")
	}
}

func TestGenerateCUERoundTrip(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Template = "makefile"
	cfg.Output = "build/out"
	cfg.SkipHooks = true
	cfg.DownloadConcurrency = 3
	cfg.CheckTimeout = 90 * time.Second

	cfgPath := filepath.Join(t.TempDir(), "config.cue")
	testutil.WriteFile(t, cfgPath, GenerateCUE(cfg))

	got, err := NewProvider().Load(t.Context(), LoadOptions{ConfigFilePath: cfgPath})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff(cfg, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigIsValid(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.DownloadConcurrency = 0
	cfg.CheckTimeout = -time.Second
	cfg.Template = "ninja"

	ok, errs := cfg.IsValid()
	if ok {
		t.Fatal("IsValid() = true, want false")
	}
	var ice *InvalidConfigError
	if !errors.As(errs[0], &ice) || len(ice.FieldErrors) != 3 {
		t.Fatalf("errs = %v, want one InvalidConfigError with 3 field errors", errs)
	}
	for _, target := range []error{ErrInvalidConfig, ErrInvalidConcurrency, ErrInvalidTimeout, workspace.ErrInvalidTemplate} {
		if !errors.Is(errs[0], target) {
			t.Errorf("errors.Is(%v) = false", target)
		}
	}
}
