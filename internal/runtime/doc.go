// SPDX-License-Identifier: MPL-2.0

// Package runtime runs shell commands for hooks, download post-commands and
// check builds.
//
// Commands are interpreted by an embedded POSIX shell (mvdan/sh), so the
// same command text behaves alike on every host. Builtins such as echo, cd
// and test run in-process; other programs are resolved on PATH and executed
// as child processes.
package runtime
