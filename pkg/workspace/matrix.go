// SPDX-License-Identifier: MPL-2.0

package workspace

import "slices"

// Matrix holds a per-architecture, per-configuration value list.
// A resolved Matrix has a non-nil list for every active (arch, config) pair.
type Matrix[T any] map[Arch]map[Config][]T

// NewMatrix returns a Matrix with an empty list for every pair.
func NewMatrix[T any](archs []Arch, configs []Config) Matrix[T] {
	m := make(Matrix[T], len(archs))
	for _, a := range archs {
		m[a] = make(map[Config][]T, len(configs))
		for _, c := range configs {
			m[a][c] = []T{}
		}
	}
	return m
}

// At returns the list for (a, c), or nil if the pair is absent.
func (m Matrix[T]) At(a Arch, c Config) []T {
	if m == nil || m[a] == nil {
		return nil
	}
	return m[a][c]
}

// Set replaces the list for (a, c).
func (m Matrix[T]) Set(a Arch, c Config, values []T) {
	if m[a] == nil {
		m[a] = make(map[Config][]T)
	}
	m[a][c] = values
}

// Append adds values to the list for (a, c).
func (m Matrix[T]) Append(a Arch, c Config, values ...T) {
	m.Set(a, c, append(m.At(a, c), values...))
}

// AppendAll adds values to every pair present in the matrix.
func (m Matrix[T]) AppendAll(values ...T) {
	for a, byConfig := range m {
		for c := range byConfig {
			m.Append(a, c, values...)
		}
	}
}

// Map rewrites every value in place.
func (m Matrix[T]) Map(fn func(T) T) {
	for _, byConfig := range m {
		for c, values := range byConfig {
			for i := range values {
				values[i] = fn(values[i])
			}
			byConfig[c] = values
		}
	}
}

// Each calls fn for every pair in the given dimension order.
// Pairs absent from the matrix are reported with a nil list.
func (m Matrix[T]) Each(archs []Arch, configs []Config, fn func(a Arch, c Config, values []T)) {
	for _, a := range archs {
		for _, c := range configs {
			fn(a, c, m.At(a, c))
		}
	}
}

// Complete reports whether every (arch, config) pair has a non-nil list.
func (m Matrix[T]) Complete(archs []Arch, configs []Config) bool {
	for _, a := range archs {
		for _, c := range configs {
			if m.At(a, c) == nil {
				return false
			}
		}
	}
	return true
}

// Archs returns the architectures present in the matrix, sorted.
func (m Matrix[T]) Archs() []Arch {
	archs := make([]Arch, 0, len(m))
	for a := range m {
		archs = append(archs, a)
	}
	slices.Sort(archs)
	return archs
}

// Clone returns a deep copy of the matrix lists.
func (m Matrix[T]) Clone() Matrix[T] {
	if m == nil {
		return nil
	}
	out := make(Matrix[T], len(m))
	for a, byConfig := range m {
		out[a] = make(map[Config][]T, len(byConfig))
		for c, values := range byConfig {
			out[a][c] = slices.Clone(values)
		}
	}
	return out
}
