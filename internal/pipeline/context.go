// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"os"
	"time"

	"kmake-cli/pkg/workspace"
)

type (
	// BuildContext is everything a run needs from the caller.
	BuildContext struct {
		// ProjectPath is the workspace document or the directory holding it.
		ProjectPath string
		Template    workspace.Template
		// Output is the output directory. A relative path is resolved
		// against the workspace directory.
		Output string
		// Archs selects target architectures. Empty means all architectures
		// of the template.
		Archs []workspace.Arch
		// Configs selects configurations. Empty means all of them.
		Configs []workspace.Config

		Verbose          bool
		CleanOutputDir   bool
		UseDownloadCache bool
		UseCheckCache    bool
		UseInputCache    bool
		SkipAssets       bool
		SkipHooks        bool

		// Defines, Libs, IncludePaths and LibPaths are appended to the
		// matching field of every content project.
		Defines      []string
		Libs         []string
		IncludePaths []string
		LibPaths     []string

		DownloadConcurrency int
		DownloadTimeout     time.Duration
		CheckTimeout        time.Duration

		// Environ is the environment ${ENV:NAME} tokens are resolved from.
		// Nil means os.Environ().
		Environ []string
		// GOOS selects the default build settings. Empty means the host.
		GOOS string
	}

	// settingOverride lets a workspace.settings key change a BuildContext
	// flag the caller left at its default.
	settingOverride struct {
		key string
		// apply sets the flag from raw when it still equals its value in
		// defaults, and reports whether it did.
		apply func(bc, defaults *BuildContext, raw any) bool
	}
)

//nolint:gochecknoglobals // fixed registry
var settingOverrides = []settingOverride{
	boolSetting("verbose", func(bc *BuildContext) *bool { return &bc.Verbose }),
	boolSetting("cleanOutputDir", func(bc *BuildContext) *bool { return &bc.CleanOutputDir }),
	boolSetting("useDownloadCache", func(bc *BuildContext) *bool { return &bc.UseDownloadCache }),
	boolSetting("useCheckCache", func(bc *BuildContext) *bool { return &bc.UseCheckCache }),
	boolSetting("useInputCache", func(bc *BuildContext) *bool { return &bc.UseInputCache }),
	boolSetting("skipAssets", func(bc *BuildContext) *bool { return &bc.SkipAssets }),
	boolSetting("skipHooks", func(bc *BuildContext) *bool { return &bc.SkipHooks }),
	{"downloadConcurrency", func(bc, defaults *BuildContext, raw any) bool {
		n, ok := toInt(raw)
		if !ok || n < 1 || bc.DownloadConcurrency != defaults.DownloadConcurrency {
			return false
		}
		bc.DownloadConcurrency = n
		return true
	}},
}

func boolSetting(key string, field func(*BuildContext) *bool) settingOverride {
	return settingOverride{key, func(bc, defaults *BuildContext, raw any) bool {
		v, ok := raw.(bool)
		if !ok || *field(bc) != *field(defaults) {
			return false
		}
		*field(bc) = v
		return true
	}}
}

func toInt(raw any) (int, bool) {
	switch v := raw.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case uint64:
		return int(v), true //nolint:gosec // concurrency values are small
	case float64:
		return int(v), v == float64(int(v))
	default:
		return 0, false
	}
}

// DefaultBuildContext returns the flag defaults for a workspace at path.
func DefaultBuildContext(path string) BuildContext {
	return BuildContext{
		ProjectPath:         path,
		Output:              "out",
		CleanOutputDir:      true,
		UseDownloadCache:    true,
		UseCheckCache:       true,
		DownloadConcurrency: 1,
		DownloadTimeout:     10 * time.Minute,
		CheckTimeout:        2 * time.Minute,
	}
}

func (bc *BuildContext) environ() []string {
	if bc.Environ != nil {
		return bc.Environ
	}
	return os.Environ()
}

// applyWorkspaceSettings copies matching workspace settings onto flags that
// still hold their default value, so command-line choices win. Values of the
// wrong type are ignored. It returns the keys that were applied.
func (bc *BuildContext) applyWorkspaceSettings(settings map[string]any) []string {
	if len(settings) == 0 {
		return nil
	}
	defaults := DefaultBuildContext(bc.ProjectPath)

	var applied []string
	for _, o := range settingOverrides {
		if raw, ok := settings[o.key]; ok && o.apply(bc, &defaults, raw) {
			applied = append(applied, o.key)
		}
	}
	return applied
}
