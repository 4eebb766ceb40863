// SPDX-License-Identifier: MPL-2.0

package workspace

import (
	"slices"
	"strings"
)

const (
	// ScalarField applies uniformly to every architecture and configuration.
	ScalarField FieldKind = iota
	// MatrixField carries at least one platform:, arch: or config: selector.
	MatrixField
)

const (
	SelectPlatform SelectorKind = "platform"
	SelectArch     SelectorKind = "arch"
	SelectConfig   SelectorKind = "config"
)

type (
	// FieldKind tags the two shapes a matrix-capable field can be declared in.
	FieldKind uint8

	// SelectorKind is the prefix of a selector key.
	SelectorKind string

	// Selector restricts a group of values to a platform pattern,
	// an architecture, or a configuration.
	Selector struct {
		Kind  SelectorKind
		Value string
	}

	// Keyed is a group of field items behind a selector. Items may nest
	// further Keyed groups.
	Keyed struct {
		Selector Selector
		Items    []any
	}

	// Field is the declared, unresolved form of a matrix-capable field.
	// Items are plain values or Keyed groups, in declaration order.
	Field struct {
		Kind  FieldKind
		Items []any
	}
)

// ParseSelector splits "arch:x64" into a Selector. ok is false for keys
// without a recognized prefix.
func ParseSelector(key string) (Selector, bool) {
	prefix, value, found := strings.Cut(key, ":")
	if !found || value == "" {
		return Selector{}, false
	}
	switch kind := SelectorKind(prefix); kind {
	case SelectPlatform, SelectArch, SelectConfig:
		return Selector{Kind: kind, Value: value}, true
	default:
		return Selector{}, false
	}
}

func (s Selector) String() string { return string(s.Kind) + ":" + s.Value }

// ParseField converts a raw document value into a Field.
//
// A list contributes its elements as items. A mapping with selector keys
// contributes one Keyed group per selector key (in key order) and keeps the
// remaining keys together as one plain mapping item. Any other value is a
// single plain item. A nil value yields an empty scalar field.
func ParseField(raw any) Field {
	var f Field
	f.Items = parseItems(raw)
	if containsKeyed(f.Items) {
		f.Kind = MatrixField
	}
	return f
}

func parseItems(raw any) []any {
	switch v := raw.(type) {
	case nil:
		return nil
	case []any:
		items := make([]any, 0, len(v))
		for _, elem := range v {
			if m, ok := elem.(map[string]any); ok {
				items = append(items, parseMapping(m)...)
				continue
			}
			items = append(items, elem)
		}
		return items
	case map[string]any:
		return parseMapping(v)
	default:
		return []any{v}
	}
}

func parseMapping(m map[string]any) []any {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var items []any
	plain := map[string]any{}
	for _, k := range keys {
		if sel, ok := ParseSelector(k); ok {
			items = append(items, Keyed{Selector: sel, Items: parseItems(m[k])})
			continue
		}
		plain[k] = m[k]
	}
	if len(plain) > 0 {
		items = append([]any{plain}, items...)
	}
	return items
}

func containsKeyed(items []any) bool {
	for _, item := range items {
		if _, ok := item.(Keyed); ok {
			return true
		}
	}
	return false
}
