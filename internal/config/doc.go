// SPDX-License-Identifier: MPL-2.0

// Package config handles tool configuration using Viper with CUE as the file format.
//
// Configuration is loaded from $XDG_CONFIG_HOME/kmake/config.cue (resolved with
// github.com/adrg/xdg, so macOS and Windows use their native locations), falling
// back to ./config.cue. Values are layered: built-in defaults, then the file,
// then KMAKE_* environment variables. Command-line flags are applied on top by
// the CLI.
//
// The file is validated against an embedded CUE schema (config_schema.cue).
package config
