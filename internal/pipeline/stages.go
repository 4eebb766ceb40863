// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"kmake-cli/pkg/workspace"
)

// hookPair returns the arch and config hooks run for: the default target
// architecture and the release configuration when it is active.
func hookPair(spec *workspace.Spec) (workspace.Arch, workspace.Config) {
	c := spec.Configs[0]
	if slices.Contains(spec.Configs, workspace.ConfigRelease) {
		c = workspace.ConfigRelease
	}
	return spec.Archs[0], c
}

// runHooks runs the commands of point for every project in order. The first
// failing command stops the run.
func (r *run) runHooks(ctx context.Context, point workspace.HookPoint) error {
	if r.bc.SkipHooks {
		return nil
	}
	a, c := hookPair(r.spec)
	for _, name := range r.buildOrder {
		p := r.spec.Projects[name]
		for _, cmd := range p.HookMatrix(point).At(a, c) {
			r.logger.Info("running hook", "point", point, "project", name, "cmd", cmd)
			res := r.runner.Run(ctx, cmd, p.WorkingDir)
			if !res.Success() {
				r.logger.Error("hook failed", "point", point, "project", name, "cmd", cmd, "exit", res.ExitCode)
				return fmt.Errorf("%s hook of project %q: %w", point, name, res.Err())
			}
		}
	}
	return nil
}

// prepareOutputDir creates the output directory, emptying it first when
// requested. A directory that contains the workspace is never emptied.
func (r *run) prepareOutputDir() error {
	if r.bc.CleanOutputDir {
		if within(r.projectDir, r.outputDir) {
			r.warn("output", r.outputDir, "output directory contains the workspace; not cleaning it")
		} else if err := os.RemoveAll(r.outputDir); err != nil {
			return fmt.Errorf("cleaning output directory: %w", err)
		}
	}
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	return nil
}

// within reports whether path is dir or below it.
func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// expandSources replaces source patterns with the matching files. Results are
// absolute, use forward slashes and keep the first occurrence of duplicates.
// SourcesBase keeps the declared patterns.
func (r *run) expandSources(p *workspace.Project) {
	patterns := p.Sources
	if len(p.SourcesBase) == 0 {
		p.SourcesBase = slices.Clone(patterns)
	}

	seen := make(map[string]bool)
	files := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(p.WorkingDir, pattern)
		}
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			r.warn("sources", p.Name, fmt.Sprintf("invalid pattern %q: %v", pattern, err))
			continue
		}
		if len(matches) == 0 {
			r.logger.Debug("source pattern matched nothing", "project", p.Name, "pattern", pattern)
		}
		for _, m := range matches {
			m = filepath.ToSlash(m)
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	p.Sources = files
}

// resolveAssets makes asset sources absolute.
func (r *run) resolveAssets(p *workspace.Project) {
	if r.bc.SkipAssets {
		p.Assets = nil
		return
	}
	for i, a := range p.Assets {
		if !filepath.IsAbs(a.Source) {
			a.Source = filepath.Join(p.WorkingDir, a.Source)
		}
		a.Source = filepath.ToSlash(a.Source)
		p.Assets[i] = a
	}
}

// mergeSettings layers the project settings over the workspace settings over
// the built-in defaults.
func (r *run) mergeSettings(p *workspace.Project) {
	merged := r.baseSettings()
	maps.Copy(merged, p.Settings)
	p.Settings = merged
}

func (r *run) baseSettings() map[string]any {
	merged := workspace.DefaultBuildSettings(r.goos)
	maps.Copy(merged, r.spec.Workspace.Settings)
	return merged
}

// setting returns a string build setting of the workspace, or def.
func (r *run) setting(key, def string) string {
	if s, ok := r.baseSettings()[key].(string); ok && s != "" {
		return s
	}
	return def
}
