// SPDX-License-Identifier: MPL-2.0

package subst

import (
	"regexp"
	"slices"
	"strings"

	"kmake-cli/pkg/workspace"
)

type (
	// LookupFunc returns the replacement for a variable name.
	LookupFunc func(name string) (string, bool)

	// Syntax selects the token form. An empty Qualifier matches ${NAME};
	// "ENV" matches ${ENV:NAME}.
	Syntax struct {
		Qualifier string
	}
)

//nolint:gochecknoglobals // compiled once
var tokenPattern = regexp.MustCompile(`\$\{([^{}]+)\}`)

// Replace substitutes every token of this syntax in s. Unknown names are left
// untouched. Values that themselves contain tokens are expanded in turn; a
// token whose expansion leads back to its own name is left untouched, so
// applying Replace twice equals applying it once.
func (sx Syntax) Replace(s string, lookup LookupFunc) string {
	out, _ := sx.expand(s, lookup, nil)
	return out
}

// expand replaces the tokens of s. active holds the names being expanded by
// the callers; cyclic reports that s refers back to one of them.
func (sx Syntax) expand(s string, lookup LookupFunc, active []string) (out string, cyclic bool) {
	if !strings.Contains(s, "${") {
		return s, false
	}
	out = tokenPattern.ReplaceAllStringFunc(s, func(token string) string {
		name, ok := sx.name(token[2 : len(token)-1])
		if !ok {
			return token
		}
		if slices.Contains(active, name) {
			cyclic = true
			return token
		}
		v, found := lookup(name)
		if !found {
			return token
		}
		expanded, loop := sx.expand(v, lookup, append(active[:len(active):len(active)], name))
		if loop {
			if len(active) > 0 {
				cyclic = true
			}
			return token
		}
		return expanded
	})
	return out, cyclic
}

// name extracts the variable name from a token body, honoring the qualifier.
func (sx Syntax) name(body string) (string, bool) {
	if sx.Qualifier == "" {
		if strings.Contains(body, ":") {
			return "", false
		}
		return body, true
	}
	qualifier, name, found := strings.Cut(body, ":")
	if !found || qualifier != sx.Qualifier || name == "" {
		return "", false
	}
	return name, true
}

// Substitute returns a copy of node with every string leaf passed through Replace.
func Substitute(node any, sx Syntax, lookup LookupFunc) any {
	return workspace.Walk(node, workspace.StringLeaves(func(s string) string {
		return sx.Replace(s, lookup)
	}))
}

// MapLookup looks names up in a fixed map.
func MapLookup(values map[string]string) LookupFunc {
	return func(name string) (string, bool) {
		v, ok := values[name]
		return v, ok
	}
}
