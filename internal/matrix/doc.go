// SPDX-License-Identifier: MPL-2.0

// Package matrix expands matrix-capable project fields into concrete
// architecture by configuration value lists and converts the raw workspace
// tree into a typed workspace.Spec.
//
// Field values may carry three kinds of selector keys:
//
//	platform:<glob>  matches the active platform family or template name
//	arch:<name>      matches one architecture
//	config:<name>    matches one configuration
//
// For every active (arch, config) pair the values are ordered from least to
// most specific: configuration-independent values come before
// configuration-specific ones, and within each group generic values come
// before platform wildcard values, which come before concrete architecture
// values. Consumers that keep only the last value for a name (defines) thus
// see the most specific declaration win.
package matrix
