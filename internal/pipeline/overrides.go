// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"path/filepath"
	"slices"
	"strings"

	"kmake-cli/internal/matrix"
	"kmake-cli/pkg/workspace"
)

// applyOverrides appends the command-line lists and the generated defines to
// every content project record of the raw tree. They are added as generic
// items, so they reach every arch and config. A field the record does not
// declare is first seeded from the workspace setting of the same name, which
// keeps the settings fallback of the matrix resolver intact.
func applyOverrides(tree workspace.Tree, bc *BuildContext, platform workspace.Platform) {
	settings, _ := tree.WorkspaceBlock()["settings"].(map[string]any)
	for _, name := range tree.Content() {
		record, ok := tree.Record(name)
		if !ok || !workspace.IsProjectRecord(record) {
			continue
		}

		for _, field := range []string{matrix.FieldDefines, matrix.FieldDependencies, matrix.FieldIncludePaths, matrix.FieldLibPaths} {
			if _, declared := record[field]; declared {
				continue
			}
			if v, ok := settings[field]; ok {
				record[field] = workspace.CloneValue(v)
			}
		}

		appendRaw(record, matrix.FieldDefines, toAny(bc.Defines)...)
		appendRaw(record, matrix.FieldDependencies, toAny(bc.Libs)...)
		appendRaw(record, matrix.FieldIncludePaths, toAny(bc.IncludePaths)...)
		appendRaw(record, matrix.FieldLibPaths, toAny(bc.LibPaths)...)

		appendRaw(record, matrix.FieldDefines, generatedDefines(name, record, platform)...)
	}
}

// generatedDefines returns PROJECT_NAME, PROJECT_<NAME>, ASSET_DIR and
// PROJECT_PATH in raw define form.
func generatedDefines(name string, record map[string]any, platform workspace.Platform) []any {
	outputType, _ := record["outputType"].(string)
	assetDir := platform.AssetDir(workspace.OutputType(outputType))

	defines := []any{
		map[string]any{"PROJECT_NAME": quote(name)},
		"PROJECT_" + strings.ToUpper(name),
		map[string]any{"ASSET_DIR": quote(filepath.ToSlash(assetDir))},
	}
	if wd, ok := record["workingDir"].(string); ok && wd != "" {
		if abs, err := filepath.Abs(wd); err == nil {
			wd = abs
		}
		defines = append(defines, map[string]any{"PROJECT_PATH": quote(filepath.ToSlash(wd))})
	}
	return defines
}

// appendRaw adds generic items to a raw field, whatever shape it was
// declared in.
func appendRaw(record map[string]any, key string, items ...any) {
	if len(items) == 0 {
		return
	}
	switch v := record[key].(type) {
	case nil:
		record[key] = slices.Clone(items)
	case []any:
		record[key] = append(slices.Clone(v), items...)
	default:
		record[key] = append([]any{v}, items...)
	}
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func quote(s string) string { return `"` + s + `"` }
