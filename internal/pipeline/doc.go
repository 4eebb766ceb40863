// SPDX-License-Identifier: MPL-2.0

// Package pipeline runs the configuration resolution stages in order and
// returns the fully resolved workspace.
//
// Stages: load, command-line overrides and generated defines, variable
// substitution, matrix resolution, dependency resolution, output directory
// preparation, beforePrepare hooks, downloads, checks, afterPrepare hooks,
// and finally source globbing, asset paths and settings defaults. Each stage
// completes before the next one starts.
package pipeline
