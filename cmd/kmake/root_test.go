// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"kmake-cli/internal/config"
	"kmake-cli/internal/dag"
	"kmake-cli/internal/download"
	"kmake-cli/internal/issue"
	"kmake-cli/internal/loader"
	"kmake-cli/internal/pipeline"
	"kmake-cli/internal/runtime"
	"kmake-cli/internal/testutil"
	"kmake-cli/pkg/workspace"
)

const demoDoc = `workspace:
  name: demo
  content: [app]
checks:
  HAS_OK: "int main() { return 0; }"
app:
  type: project
  outputType: main
  sources: ["*.cpp"]
  beforePrepare: ["%s"]
`

type (
	staticProvider struct {
		cfg *config.Config
		err error
	}

	passBuilder struct{}

	exitRunner struct {
		fail string
		code runtime.ExitCode
	}

	harness struct {
		app    *app
		stdout *bytes.Buffer
		stderr *bytes.Buffer
	}
)

func (p staticProvider) Load(context.Context, config.LoadOptions) (*config.Config, error) {
	if p.err != nil {
		return nil, p.err
	}
	cfg := *p.cfg
	return &cfg, nil
}

func (passBuilder) Build(context.Context, string) (bool, error) { return true, nil }

func (r exitRunner) Run(_ context.Context, command, dir string) *runtime.Result {
	res := &runtime.Result{Command: command, Dir: dir}
	if command == r.fail {
		res.ExitCode = r.code
	}
	return res
}

func newHarness(cfg *config.Config, cfgErr error, runner runtime.Runner) *harness {
	h := &harness{stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}
	h.app = &app{
		provider: staticProvider{cfg: cfg, err: cfgErr},
		stdin:    strings.NewReader(""),
		stdout:   h.stdout,
		stderr:   h.stderr,
		pipelineOptions: []pipeline.Option{
			pipeline.WithBuilder(passBuilder{}),
			pipeline.WithRunner(runner),
		},
	}
	return h
}

func (h *harness) execute(ctx context.Context, args ...string) error {
	root := newRootCommand(h.app)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func writeDemo(t *testing.T, hook string) string {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(dir, "kmake.yml"), fmt.Sprintf(demoDoc, hook))
	testutil.WriteFile(t, filepath.Join(dir, "main.cpp"), "int main() {}\n")
	return dir
}

func TestResolvePrintsWorkspace(t *testing.T) {
	t.Parallel()

	dir := writeDemo(t, "echo hi")
	h := newHarness(config.DefaultConfig(), nil, exitRunner{})

	if err := h.execute(t.Context(), "resolve", dir, "--template", "mk", "--define", "EXTRA"); err != nil {
		t.Fatalf("resolve: %v\nstderr: %s", err, h.stderr)
	}

	var got map[string]any
	if err := yaml.Unmarshal(h.stdout.Bytes(), &got); err != nil {
		t.Fatalf("output is not YAML: %v\n%s", err, h.stdout)
	}
	if diff := cmp.Diff([]any{"app"}, got["buildOrder"]); diff != "" {
		t.Errorf("buildOrder mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]any{"HAS_OK=true"}, got["checks"]); diff != "" {
		t.Errorf("checks mismatch (-want +got):\n%s", diff)
	}
	ws, ok := got["workspace"].(map[string]any)
	if !ok || ws["name"] != "demo" {
		t.Errorf("workspace = %v, want name demo", got["workspace"])
	}
	projects, ok := got["projects"].(map[string]any)
	if !ok || projects["app"] == nil {
		t.Errorf("projects = %v, want app", got["projects"])
	}
	if got["outputDir"] != filepath.Join(dir, "out") {
		t.Errorf("outputDir = %v, want %s", got["outputDir"], filepath.Join(dir, "out"))
	}
}

func TestResolveErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		setup    func(t *testing.T) string
		args     []string
		runner   exitRunner
		wantErr  error
		wantCode runtime.ExitCode
		wantOut  string
	}{
		{
			name:     "missing workspace",
			setup:    func(t *testing.T) string { return t.TempDir() },
			wantErr:  loader.ErrWorkspaceNotFound,
			wantCode: 1,
			wantOut:  "failed to load workspace",
		},
		{
			name:     "unknown template",
			setup:    func(t *testing.T) string { return writeDemo(t, "echo hi") },
			args:     []string{"--template", "ninja"},
			wantErr:  workspace.ErrInvalidTemplate,
			wantCode: 1,
			wantOut:  "failed to select template",
		},
		{
			name:     "hook exit code",
			setup:    func(t *testing.T) string { return writeDemo(t, "exit 7") },
			runner:   exitRunner{fail: "exit 7", code: 7},
			wantErr:  runtime.ErrHook,
			wantCode: 7,
			wantOut:  "--verbose",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(config.DefaultConfig(), nil, tt.runner)
			args := append([]string{"resolve", tt.setup(t)}, tt.args...)
			err := h.execute(t.Context(), args...)

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			var exitErr *ExitError
			if !errors.As(err, &exitErr) || exitErr.Code != tt.wantCode {
				t.Errorf("error = %#v, want ExitError with code %d", err, tt.wantCode)
			}
			if !strings.Contains(h.stderr.String(), tt.wantOut) {
				t.Errorf("stderr missing %q:\n%s", tt.wantOut, h.stderr)
			}
		})
	}
}

func TestCheckCommand(t *testing.T) {
	t.Parallel()

	dir := writeDemo(t, "echo hi")
	h := newHarness(config.DefaultConfig(), nil, exitRunner{fail: "echo hi", code: 1})

	// Hooks do not run for check, so the failing runner is never reached.
	if err := h.execute(t.Context(), "check", dir); err != nil {
		t.Fatalf("check: %v\nstderr: %s", err, h.stderr)
	}
	if !strings.Contains(h.stdout.String(), "HAS_OK=true") {
		t.Errorf("stdout = %q, want HAS_OK=true", h.stdout)
	}
	if !testutil.Exists(t, filepath.Join(dir, ".check.cache")) {
		t.Error(".check.cache not written")
	}
}

func TestConfigCommands(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.DownloadConcurrency = 6

	h := newHarness(cfg, nil, exitRunner{})
	if err := h.execute(t.Context(), "config", "dump"); err != nil {
		t.Fatalf("config dump: %v", err)
	}
	if !strings.Contains(h.stdout.String(), "download_concurrency: 6") {
		t.Errorf("dump = %q, want download_concurrency: 6", h.stdout)
	}

	path := filepath.Join(t.TempDir(), "kmake", "config.cue")
	h = newHarness(nil, errors.New("no such file"), exitRunner{})
	if err := h.execute(t.Context(), "config", "init", "--config", path); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if got := testutil.ReadFile(t, path); got != config.GenerateCUE(config.DefaultConfig()) {
		t.Errorf("config init wrote:\n%s", got)
	}
}

func TestConfigLoadFailure(t *testing.T) {
	t.Parallel()

	cause := issue.NewErrorContext().
		WithOperation("load configuration").
		WithIssue(issue.ConfigLoadFailedId).
		Wrap(config.ErrInvalidConfig).
		BuildError()
	h := newHarness(nil, cause, exitRunner{})

	err := h.execute(t.Context(), "resolve", t.TempDir())
	if !errors.Is(err, config.ErrInvalidConfig) {
		t.Fatalf("error = %v, want ErrInvalidConfig", err)
	}
	if !strings.Contains(h.stderr.String(), "failed to load configuration") {
		t.Errorf("stderr = %q", h.stderr)
	}
}

func TestBuildContext(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Template = "xcodeMac"
	cfg.UseCheckCache = false
	cfg.DownloadConcurrency = 4
	cfg.CheckTimeout = 30 * time.Second

	tests := []struct {
		name    string
		args    []string
		want    func(bc *pipeline.BuildContext)
		wantErr bool
	}{
		{
			name: "config only",
			want: func(bc *pipeline.BuildContext) {},
		},
		{
			name: "flags override config",
			args: []string{"-t", "vs", "--no-check-cache=false", "--download-concurrency", "2", "--no-clean", "-a", "x64,win32", "-c", "release"},
			want: func(bc *pipeline.BuildContext) {
				bc.Template = workspace.TemplateVS2019
				bc.UseCheckCache = true
				bc.DownloadConcurrency = 2
				bc.CleanOutputDir = false
				bc.Archs = []workspace.Arch{"x64", "win32"}
				bc.Configs = []workspace.Config{workspace.ConfigRelease}
			},
		},
		{
			name: "lists",
			args: []string{"-D", "A=1", "-D", "B", "--lib", "m", "--includePath", "inc", "--libPath", "lib"},
			want: func(bc *pipeline.BuildContext) {
				bc.Defines = []string{"A=1", "B"}
				bc.Libs = []string{"m"}
				bc.IncludePaths = []string{"inc"}
				bc.LibPaths = []string{"lib"}
			},
		},
		{
			name:    "zero concurrency",
			args:    []string{"--download-concurrency", "0"},
			wantErr: true,
		},
		{
			name:    "bad template",
			args:    []string{"-t", "ninja"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			a := &app{cfg: cfg}
			var f buildFlags
			cmd := &cobra.Command{Use: "resolve"}
			f.register(cmd)
			if err := cmd.ParseFlags(tt.args); err != nil {
				t.Fatalf("ParseFlags: %v", err)
			}

			got, err := a.buildContext(cmd, &f, "ws")
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("buildContext: %v", err)
			}

			want := pipeline.DefaultBuildContext("ws")
			want.Template = workspace.TemplateXcodeMac
			want.UseCheckCache = false
			want.DownloadConcurrency = 4
			want.CheckTimeout = 30 * time.Second
			tt.want(&want)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("BuildContext mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestActionable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want issue.Id
	}{
		{"not found", fmt.Errorf("resolve: %w", loader.ErrWorkspaceNotFound), issue.WorkspaceNotFoundId},
		{"parse", &loader.LoadError{Path: "kmake.yml", Cause: errors.New("bad")}, issue.WorkspaceParseErrorId},
		{"cycle", &workspace.ValidationError{Field: "dependencies", Cause: dag.ErrCycle}, issue.DependencyCycleId},
		{"integrity", &download.IntegrityError{URL: "u", Algorithm: "md5"}, issue.IntegrityCheckFailedId},
		{"hook", &runtime.HookError{Command: "false", ExitCode: 1}, issue.HookFailedId},
		{"missing project", &workspace.ValidationError{Project: "app", Reason: "no record"}, issue.ProjectNotFoundId},
		{"plain", errors.New("boom"), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ae := actionable(tt.err)
			if ae.Issue != tt.want {
				t.Errorf("Issue = %d, want %d", ae.Issue, tt.want)
			}
			if !errors.Is(ae, tt.err) {
				t.Errorf("actionable error does not wrap %v", tt.err)
			}
		})
	}
}

func TestOutputIgnore(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "ws")
	tests := []struct {
		output string
		want   []string
	}{
		{"out", []string{"out/**"}},
		{filepath.Join("build", "gen"), []string{"build/gen/**"}},
		{filepath.Join(dir, "abs"), []string{"abs/**"}},
		{".", nil},
		{filepath.Join("..", "elsewhere"), nil},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, outputIgnore(dir, tt.output)); diff != "" {
			t.Errorf("outputIgnore(%q) mismatch (-want +got):\n%s", tt.output, diff)
		}
	}
}
