// SPDX-License-Identifier: MPL-2.0

// Package loader reads workspace documents and merges their imports.
//
// A document is YAML, TOML or CUE, chosen by file extension. Loading strips the
// document's imports list, stamps every project record with the document
// directory as workingDir (unless one is set), then shallow-merges each import
// underneath it: later imports beat earlier ones and the importing document
// beats all of them.
package loader
