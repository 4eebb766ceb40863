// SPDX-License-Identifier: MPL-2.0

package subst

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"kmake-cli/pkg/workspace"
)

type fakePrompter struct {
	answers map[string]string
	calls   []string
	cached  map[string]string
}

func (f *fakePrompter) Prompt(_ context.Context, name, cached string) (string, error) {
	f.calls = append(f.calls, name)
	if f.cached == nil {
		f.cached = map[string]string{}
	}
	f.cached[name] = cached
	return f.answers[name], nil
}

func inputTree() workspace.Tree {
	return workspace.Tree{
		"inputs": []any{"TEAM_ID", "SIGN"},
		"app":    map[string]any{"settings": map[string]any{"TEAM": "${TEAM_ID}", "SIGN": "${SIGN}"}},
	}
}

func TestInputPass_PromptsAndCaches(t *testing.T) {
	t.Parallel()

	cachePath := filepath.Join(t.TempDir(), InputCacheFile)
	if err := SaveInputCache(cachePath, map[string]string{"SIGN": "old-sign"}); err != nil {
		t.Fatal(err)
	}

	prompter := &fakePrompter{answers: map[string]string{"TEAM_ID": "ABC123", "SIGN": ""}}
	pass := &InputPass{Prompter: prompter, CachePath: cachePath}

	got, err := pass.Apply(context.Background(), inputTree())
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	settings := got["app"].(map[string]any)["settings"].(map[string]any)
	if settings["TEAM"] != "ABC123" {
		t.Errorf("TEAM = %v, want prompted value", settings["TEAM"])
	}
	if settings["SIGN"] != "old-sign" {
		t.Errorf("SIGN = %v, want cached value on empty answer", settings["SIGN"])
	}
	if prompter.cached["SIGN"] != "old-sign" {
		t.Errorf("prompt for SIGN got cached %q, want old-sign", prompter.cached["SIGN"])
	}

	cache, err := LoadInputCache(cachePath)
	if err != nil {
		t.Fatal(err)
	}
	if cache["TEAM_ID"] != "ABC123" || cache["SIGN"] != "old-sign" {
		t.Errorf("cache = %v", cache)
	}
}

func TestInputPass_UseCacheNeverPrompts(t *testing.T) {
	t.Parallel()

	cachePath := filepath.Join(t.TempDir(), InputCacheFile)
	if err := SaveInputCache(cachePath, map[string]string{"TEAM_ID": "CACHED"}); err != nil {
		t.Fatal(err)
	}

	prompter := &fakePrompter{}
	pass := &InputPass{Prompter: prompter, CachePath: cachePath, UseCache: true}

	got, err := pass.Apply(context.Background(), inputTree())
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if len(prompter.calls) != 0 {
		t.Errorf("prompter called %v, want no prompts", prompter.calls)
	}
	settings := got["app"].(map[string]any)["settings"].(map[string]any)
	if settings["TEAM"] != "CACHED" || settings["SIGN"] != "${SIGN}" {
		t.Errorf("settings = %v", settings)
	}
}

func TestInputPass_NoInputs(t *testing.T) {
	t.Parallel()

	tree := workspace.Tree{"app": map[string]any{}}
	got, err := (&InputPass{}).Apply(context.Background(), tree)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(got) != 1 {
		t.Errorf("Apply() = %v", got)
	}
}

func TestLinePrompter(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	p := NewLinePrompter(strings.NewReader("first\n  second  \n"), &out)

	for _, want := range []string{"first", "second", ""} {
		got, err := p.Prompt(context.Background(), "NAME", "prev")
		if err != nil {
			t.Fatalf("Prompt() error = %v", err)
		}
		if got != want {
			t.Errorf("Prompt() = %q, want %q", got, want)
		}
	}
	if !strings.Contains(out.String(), "NAME") || !strings.Contains(out.String(), "prev") {
		t.Errorf("prompt output = %q", out.String())
	}
}

func TestLoadInputCache_Missing(t *testing.T) {
	t.Parallel()

	cache, err := LoadInputCache(filepath.Join(t.TempDir(), "nope"))
	if err != nil || len(cache) != 0 {
		t.Errorf("LoadInputCache(missing) = %v, %v", cache, err)
	}
}
