// SPDX-License-Identifier: MPL-2.0

// Package watch re-resolves a workspace when its documents or sources change.
//
// Events are filtered by doublestar patterns relative to the workspace
// directory and coalesced over a debounce window, so an editor's
// write-then-rename produces one re-resolution. State files written by the
// pipeline itself (caches, the output directory) are ignored so a run never
// triggers the next one.
package watch
