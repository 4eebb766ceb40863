// SPDX-License-Identifier: MPL-2.0

package workspace

// LeafFunc transforms one non-container value.
type LeafFunc func(leaf any) any

// Walk returns a copy of node in which every value that is neither a mapping
// nor a list has been replaced by fn(value). Mapping keys are left unchanged.
func Walk(node any, fn LeafFunc) any {
	switch v := node.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, elem := range v {
			out[k] = Walk(elem, fn)
		}
		return out
	case Tree:
		return Tree(Walk(map[string]any(v), fn).(map[string]any))
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			out[i] = Walk(elem, fn)
		}
		return out
	default:
		return fn(v)
	}
}

// StringLeaves adapts a string transform into a LeafFunc that leaves
// non-string values untouched.
func StringLeaves(fn func(string) string) LeafFunc {
	return func(leaf any) any {
		if s, ok := leaf.(string); ok {
			return fn(s)
		}
		return leaf
	}
}
