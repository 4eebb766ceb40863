// SPDX-License-Identifier: MPL-2.0

// Package cueutil provides shared CUE parsing and validation utilities.
//
// Two flows are supported:
//
//  1. ParseAndDecode compiles an embedded schema, compiles a CUE document,
//     unifies the two, validates and decodes into a Go value.
//  2. Validate encodes an already-decoded Go value (for example a merged YAML
//     tree) into CUE and checks it against a schema definition.
//
// Both report failures through FormatError, which prefixes every message with
// the JSON path of the offending field.
package cueutil
