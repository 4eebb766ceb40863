// SPDX-License-Identifier: MPL-2.0

// Package workspace defines the kmake workspace data model.
//
// A workspace document is first handled as an untyped Tree (the shape the
// loader and the variable passes operate on). The matrix resolver then turns
// it into a Spec, where every matrix-capable project field is a concrete
// Matrix indexed by architecture and configuration.
//
// The package also carries the template registry (templates, their platform
// family and architectures), the embedded CUE schema for workspace documents,
// and the validation error types shared by every resolution stage.
package workspace
