// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

type (
	// Runner runs one shell command in a directory.
	Runner interface {
		Run(ctx context.Context, command, dir string) *Result
	}

	// Shell is the embedded-shell Runner.
	Shell struct {
		// Environ returns the host environment as KEY=VALUE strings.
		// When nil, os.Environ() is used.
		Environ func() []string
		// Env is layered over the host environment.
		Env map[string]string
		// Stdout and Stderr receive command output in addition to the
		// captured copies kept in the Result.
		Stdout io.Writer
		Stderr io.Writer
		Logger *log.Logger
	}
)

// NewShell creates a Shell that inherits the host environment.
func NewShell(logger *log.Logger) *Shell {
	return &Shell{Logger: logger}
}

// Validate parses command without running it.
func Validate(command string) error {
	if _, err := syntax.NewParser().Parse(strings.NewReader(command), "command"); err != nil {
		return fmt.Errorf("command syntax error: %w", err)
	}
	return nil
}

// Run implements Runner. Output is always captured.
func (s *Shell) Run(ctx context.Context, command, dir string) *Result {
	result := &Result{Command: command, Dir: dir}

	prog, err := syntax.NewParser().Parse(strings.NewReader(command), "command")
	if err != nil {
		result.ExitCode = 1
		result.Error = fmt.Errorf("failed to parse command: %w", err)
		return result
	}

	if err := validateWorkDir(dir); err != nil {
		result.ExitCode = 1
		result.Error = err
		return result
	}

	var stdout, stderr bytes.Buffer
	runner, err := interp.New(
		interp.Dir(dir),
		interp.Env(expand.ListEnviron(s.environ()...)),
		interp.StdIO(nil, tee(&stdout, s.Stdout), tee(&stderr, s.Stderr)),
	)
	if err != nil {
		result.ExitCode = 1
		result.Error = fmt.Errorf("failed to create interpreter: %w", err)
		return result
	}

	if s.Logger != nil {
		s.Logger.Debug("run", "cmd", command, "dir", dir)
	}
	result.ExitCode, result.Error = exitCodeOf(runner.Run(ctx, prog))
	result.Output = stdout.String()
	result.ErrOutput = stderr.String()
	return result
}

func (s *Shell) environ() []string {
	host := os.Environ
	if s.Environ != nil {
		host = s.Environ
	}

	env := make(map[string]string)
	for _, kv := range host() {
		k, v, ok := strings.Cut(kv, "=")
		if ok && k != "" {
			env[k] = v
		}
	}
	maps.Copy(env, s.Env)

	out := make([]string, 0, len(env))
	for _, k := range slices.Sorted(maps.Keys(env)) {
		out = append(out, k+"="+env[k])
	}
	return out
}

func tee(capture *bytes.Buffer, w io.Writer) io.Writer {
	if w == nil {
		return capture
	}
	return io.MultiWriter(capture, w)
}

// validateWorkDir gives a clearer message than the interpreter for a missing
// or unusable directory. An empty dir means the current directory.
func validateWorkDir(dir string) error {
	if dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("directory does not exist: %s", dir)
		}
		if os.IsPermission(err) {
			return fmt.Errorf("permission denied: %s", dir)
		}
		return fmt.Errorf("cannot access directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", dir)
	}
	return nil
}
