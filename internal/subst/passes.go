// SPDX-License-Identifier: MPL-2.0

package subst

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"kmake-cli/pkg/workspace"
)

const (
	BuiltinWorkingDir          = "WORKING_DIR"
	BuiltinWorkingDirBackslash = "WORKING_DIR_BACKSLASH"
	BuiltinOutputDir           = "OUTPUT_DIR"
	BuiltinOutputDirBackslash  = "OUTPUT_DIR_BACKSLASH"
	BuiltinProjectName         = "PROJECT_NAME"
)

type (
	// Pass is one substitution stage over the whole tree.
	Pass interface {
		Name() string
		Apply(ctx context.Context, tree workspace.Tree) (workspace.Tree, error)
	}

	// EnvPass replaces ${ENV:NAME} tokens. Names are compared uppercase.
	EnvPass struct {
		// Environ is a KEY=VALUE list, usually os.Environ().
		Environ []string
	}

	// VariablePass replaces ${NAME} tokens with the workspace variables map.
	VariablePass struct{}

	// BuiltinPass replaces per-record builtins inside each record's subtree.
	BuiltinPass struct {
		// OutputDir is the absolute output directory of the build.
		OutputDir string
	}
)

func (EnvPass) Name() string { return "env" }

// Apply implements Pass.
func (p EnvPass) Apply(_ context.Context, tree workspace.Tree) (workspace.Tree, error) {
	env := make(map[string]string, len(p.Environ))
	for _, kv := range p.Environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		env[strings.ToUpper(k)] = v
	}

	lookup := func(name string) (string, bool) {
		v, ok := env[strings.ToUpper(name)]
		return v, ok
	}
	return Substitute(tree, Syntax{Qualifier: "ENV"}, lookup).(workspace.Tree), nil
}

func (VariablePass) Name() string { return "variables" }

// Apply implements Pass.
func (VariablePass) Apply(_ context.Context, tree workspace.Tree) (workspace.Tree, error) {
	raw, ok := tree[workspace.KeyVariables].(map[string]any)
	if !ok || len(raw) == 0 {
		return tree, nil
	}

	vars := make(map[string]string, len(raw))
	for k, v := range raw {
		vars[k] = fmt.Sprint(v)
	}
	return Substitute(tree, Syntax{}, MapLookup(vars)).(workspace.Tree), nil
}

func (BuiltinPass) Name() string { return "builtins" }

// Apply implements Pass. Only non-reserved mapping records are visited, and
// WORKING_DIR is only defined for records that carry a workingDir.
func (p BuiltinPass) Apply(_ context.Context, tree workspace.Tree) (workspace.Tree, error) {
	out := make(workspace.Tree, len(tree))
	for k, v := range tree {
		out[k] = v
	}

	outputDir := filepath.Clean(p.OutputDir)
	for _, name := range tree.Records() {
		record, _ := tree.Record(name)
		out[name] = Substitute(record, Syntax{}, MapLookup(Builtins(name, record, outputDir)))
	}
	return out, nil
}

// Builtins returns the builtin variables of one record.
func Builtins(name string, record map[string]any, outputDir string) map[string]string {
	vars := map[string]string{
		BuiltinOutputDir:          filepath.ToSlash(outputDir),
		BuiltinOutputDirBackslash: filepath.FromSlash(outputDir),
		BuiltinProjectName:        name,
	}
	if wd, ok := record["workingDir"].(string); ok && wd != "" {
		abs, err := filepath.Abs(wd)
		if err != nil {
			abs = wd
		}
		vars[BuiltinWorkingDir] = filepath.ToSlash(abs)
		vars[BuiltinWorkingDirBackslash] = filepath.FromSlash(abs)
	}
	return vars
}

// DefaultPasses returns the four passes in resolution order.
func DefaultPasses(input *InputPass, environ []string, outputDir string) []Pass {
	return []Pass{
		input,
		EnvPass{Environ: environ},
		VariablePass{},
		BuiltinPass{OutputDir: outputDir},
	}
}

// Run applies passes in order.
func Run(ctx context.Context, tree workspace.Tree, passes ...Pass) (workspace.Tree, error) {
	for _, p := range passes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := p.Apply(ctx, tree)
		if err != nil {
			return nil, fmt.Errorf("%s pass: %w", p.Name(), err)
		}
		tree = next
	}
	return tree, nil
}
