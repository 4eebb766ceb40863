// SPDX-License-Identifier: MPL-2.0

package check

import (
	"context"
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"kmake-cli/internal/runtime"
)

// ProbeFile is the file name a probe is materialized as inside the scratch directory.
const ProbeFile = "check.cpp"

type (
	// Builder builds the probe found in dir and reports whether it built.
	// An error means the build could not be attempted at all.
	Builder interface {
		Build(ctx context.Context, dir string) (bool, error)
	}

	// CompilerBuilder compiles and links ProbeFile with a C++ compiler
	// through a shell Runner.
	CompilerBuilder struct {
		Runner runtime.Runner
		// Compiler is the compiler executable, such as "g++".
		Compiler string
		// Flags are passed to the compiler unquoted, so several flags may be given.
		Flags string
	}
)

// Command returns the shell command that builds the probe.
func (b *CompilerBuilder) Command() (string, error) {
	cc, err := syntax.Quote(b.Compiler, syntax.LangBash)
	if err != nil {
		return "", fmt.Errorf("quoting compiler %q: %w", b.Compiler, err)
	}
	parts := []string{cc}
	if flags := strings.TrimSpace(b.Flags); flags != "" {
		parts = append(parts, flags)
	}
	parts = append(parts, ProbeFile, "-o", "check.out")
	return strings.Join(parts, " "), nil
}

// Build implements Builder.
func (b *CompilerBuilder) Build(ctx context.Context, dir string) (bool, error) {
	cmd, err := b.Command()
	if err != nil {
		return false, err
	}
	res := b.Runner.Run(ctx, cmd, dir)
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return res.Success(), nil
}
