// SPDX-License-Identifier: MPL-2.0

package workspace

import (
	"slices"
	"sort"
)

const (
	KeyWorkspace = "workspace"
	KeyImports   = "imports"
	KeyVariables = "variables"
	KeyInputs    = "inputs"
	KeyChecks    = "checks"
)

//nolint:gochecknoglobals // fixed registry
var reservedKeys = []string{KeyWorkspace, KeyImports, KeyVariables, KeyInputs, KeyChecks}

// Tree is an untyped workspace document: the decoded YAML, TOML or CUE root.
type Tree map[string]any

// IsReservedKey reports whether key is a top-level configuration key
// rather than a project or auxiliary record.
func IsReservedKey(key string) bool {
	return slices.Contains(reservedKeys, key)
}

// IsProjectRecord reports whether v is a mapping with type "project".
func IsProjectRecord(v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	t, _ := m["type"].(string)
	return t == KindProject
}

// Records returns the names of all non-reserved mapping entries, sorted.
func (t Tree) Records() []string {
	names := make([]string, 0, len(t))
	for k, v := range t {
		if IsReservedKey(k) {
			continue
		}
		if _, ok := v.(map[string]any); ok {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}

// Record returns the mapping stored under name.
func (t Tree) Record(name string) (map[string]any, bool) {
	m, ok := t[name].(map[string]any)
	return m, ok
}

// WorkspaceBlock returns the workspace mapping, or nil.
func (t Tree) WorkspaceBlock() map[string]any {
	m, _ := t[KeyWorkspace].(map[string]any)
	return m
}

// Content returns workspace.content as strings, in order.
func (t Tree) Content() []string {
	raw, _ := t.WorkspaceBlock()["content"].([]any)
	content := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			content = append(content, s)
		}
	}
	return content
}

// Clone returns a deep copy of the tree's mappings and lists.
func (t Tree) Clone() Tree {
	return Tree(CloneValue(map[string]any(t)).(map[string]any))
}

// CloneValue deep-copies mappings and lists. Other values are returned as is.
func CloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = CloneValue(elem)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = CloneValue(elem)
		}
		return out
	default:
		return v
	}
}
