// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"path/filepath"
	"strings"

	"kmake-cli/internal/loader"
	"kmake-cli/internal/pipeline"
	"kmake-cli/internal/watch"
)

// watchWorkspace re-runs resolve whenever the workspace changes, until ctx
// is canceled. Failed runs are reported and watching continues.
func (a *app) watchWorkspace(ctx context.Context, bc pipeline.BuildContext, resolve func(context.Context) error) error {
	doc, err := loader.ResolvePath(bc.ProjectPath)
	if err != nil {
		return a.fail(err)
	}
	dir := filepath.Dir(doc)

	w, err := watch.New(watch.Config{
		Dir:    dir,
		Ignore: outputIgnore(dir, bc.Output),
		Logger: a.logger,
		OnChange: func(ctx context.Context, _ []string) error {
			return resolve(ctx)
		},
	})
	if err != nil {
		return a.fail(err)
	}

	a.logger.Info("watching for changes", "dir", dir)
	if err := w.Run(ctx); err != nil {
		return a.fail(err)
	}
	return nil
}

// outputIgnore keeps writes into the output directory from triggering runs.
func outputIgnore(dir, output string) []string {
	if !filepath.IsAbs(output) {
		output = filepath.Join(dir, output)
	}
	rel, err := filepath.Rel(dir, output)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil
	}
	return []string{filepath.ToSlash(rel) + "/**"}
}
