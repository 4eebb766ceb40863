// SPDX-License-Identifier: MPL-2.0

package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/charmbracelet/log"

	"kmake-cli/pkg/cueutil"
	"kmake-cli/pkg/workspace"
)

type (
	// Loader loads workspace documents and their imports.
	// A Loader holds no state between Load calls.
	Loader struct {
		logger      *log.Logger
		maxFileSize int64
	}

	// Option configures a Loader.
	Option func(*Loader)
)

// WithLogger sets the logger used for per-document debug output.
func WithLogger(logger *log.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithMaxFileSize limits the size of every document read.
func WithMaxFileSize(size int64) Option {
	return func(l *Loader) {
		l.maxFileSize = size
	}
}

// New creates a Loader.
func New(opts ...Option) *Loader {
	l := &Loader{
		logger:      log.New(io.Discard),
		maxFileSize: cueutil.DefaultMaxFileSize,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ResolvePath returns the workspace document for path. A directory resolves to
// the first of DocumentNames it contains.
func ResolvePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", &LoadError{Path: path, Cause: err}
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", &LoadError{Path: path, Cause: fmt.Errorf("%w: %w", ErrWorkspaceNotFound, err)}
	}
	if !info.IsDir() {
		return abs, nil
	}

	for _, name := range DocumentNames {
		candidate := filepath.Join(abs, name)
		if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
			return candidate, nil
		}
	}
	return "", &LoadError{Path: path, Cause: ErrWorkspaceNotFound}
}

// Load reads the document at path and merges its imports recursively.
func (l *Loader) Load(ctx context.Context, path string) (workspace.Tree, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &LoadError{Path: path, Cause: err}
	}
	tree, err := l.load(ctx, abs, nil)
	if err != nil {
		return nil, err
	}
	return workspace.Tree(tree), nil
}

func (l *Loader) load(ctx context.Context, path string, stack []string) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if slices.Contains(stack, path) {
		return nil, &LoadError{Path: path, Cause: fmt.Errorf("%w: %v", ErrImportCycle, append(stack, path))}
	}
	stack = append(stack, path)

	doc, err := l.readDocument(path)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	imports, err := takeImports(doc, path)
	if err != nil {
		return nil, err
	}
	stampWorkingDir(doc, dir)

	l.logger.Debug("loaded document", "path", path, "imports", len(imports))

	merged := map[string]any{}
	for _, imp := range imports {
		importPath := imp
		if !filepath.IsAbs(importPath) {
			importPath = filepath.Join(dir, importPath)
		}
		if _, statErr := os.Stat(importPath); statErr != nil {
			if errors.Is(statErr, fs.ErrNotExist) {
				return nil, &LoadError{Path: importPath, Cause: fmt.Errorf("%w: imported by %s", ErrImportNotFound, path)}
			}
			return nil, &LoadError{Path: importPath, Cause: statErr}
		}

		imported, err := l.load(ctx, filepath.Clean(importPath), stack)
		if err != nil {
			return nil, err
		}
		shallowMerge(merged, imported)
	}

	shallowMerge(merged, doc)
	return merged, nil
}

func (l *Loader) readDocument(path string) (map[string]any, error) {
	decode, err := decoderFor(path)
	if err != nil {
		return nil, &LoadError{Path: path, Cause: err}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Cause: err}
	}

	doc, err := decode(data, filepath.Base(path), l.maxFileSize)
	if err != nil {
		return nil, &LoadError{Path: path, Cause: err}
	}
	return doc, nil
}

// takeImports removes the imports key and returns its entries.
func takeImports(doc map[string]any, path string) ([]string, error) {
	raw, ok := doc[workspace.KeyImports]
	if !ok {
		return nil, nil
	}
	delete(doc, workspace.KeyImports)

	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	case []any:
		imports := make([]string, 0, len(v))
		for _, elem := range v {
			s, ok := elem.(string)
			if !ok {
				return nil, &LoadError{Path: path, Cause: fmt.Errorf("imports: expected string, got %T", elem)}
			}
			imports = append(imports, s)
		}
		return imports, nil
	default:
		return nil, &LoadError{Path: path, Cause: fmt.Errorf("imports: expected list, got %T", raw)}
	}
}

// stampWorkingDir sets workingDir on project records that have none and makes
// relative explicit values absolute against dir.
func stampWorkingDir(doc map[string]any, dir string) {
	for key, v := range doc {
		if workspace.IsReservedKey(key) || !workspace.IsProjectRecord(v) {
			continue
		}
		record := v.(map[string]any)

		wd, _ := record["workingDir"].(string)
		switch {
		case wd == "":
			record["workingDir"] = dir
		case !filepath.IsAbs(wd):
			record["workingDir"] = filepath.Join(dir, wd)
		}
	}
}

// shallowMerge copies the top-level keys of src into dst, replacing existing ones.
func shallowMerge(dst, src map[string]any) {
	for k, v := range src {
		dst[k] = v
	}
}
