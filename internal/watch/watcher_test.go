// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"kmake-cli/internal/testutil"
)

// start runs a watcher over dir and returns the channel OnChange reports to.
func start(t *testing.T, dir string, ignore ...string) <-chan []string {
	t.Helper()

	changes := make(chan []string, 10)
	w, err := New(Config{
		Dir:      dir,
		Ignore:   ignore,
		Debounce: 100 * time.Millisecond,
		OnChange: func(_ context.Context, changed []string) error {
			changes <- changed
			return nil
		},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(t.Context())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-errCh; err != nil {
			t.Errorf("Run() error: %v", err)
		}
	})

	// Let the event loop start before the test writes.
	time.Sleep(50 * time.Millisecond)
	return changes
}

func await(t *testing.T, changes <-chan []string) []string {
	t.Helper()
	select {
	case changed := <-changes:
		return changed
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a change")
		return nil
	}
}

func TestWatcherCoalescesChanges(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	changes := start(t, dir)

	for _, name := range []string{"kmake.yml", "main.cpp", "util.h"} {
		testutil.WriteFile(t, filepath.Join(dir, name), "x")
		time.Sleep(10 * time.Millisecond)
	}

	got := await(t, changes)
	for _, want := range []string{"kmake.yml", "main.cpp", "util.h"} {
		if !slices.Contains(got, want) {
			t.Errorf("changed = %v, missing %s", got, want)
		}
	}
	if !slices.IsSorted(got) {
		t.Errorf("changed = %v, want sorted", got)
	}
}

func TestWatcherFiltersPaths(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.MustMkdirAll(t, filepath.Join(dir, "out"))
	testutil.MustMkdirAll(t, filepath.Join(dir, "src"))
	changes := start(t, dir, "out/**")

	// None of these may trigger a run: state files, the output directory and
	// files no pattern selects.
	testutil.WriteFile(t, filepath.Join(dir, ".check.cache"), "x")
	testutil.WriteFile(t, filepath.Join(dir, ".download.cache"), "x")
	testutil.WriteFile(t, filepath.Join(dir, "out", "generated.cpp"), "x")
	testutil.WriteFile(t, filepath.Join(dir, "notes.txt"), "x")
	time.Sleep(300 * time.Millisecond)

	testutil.WriteFile(t, filepath.Join(dir, "src", "app.cpp"), "x")

	got := await(t, changes)
	if !slices.Equal([]string{"src/app.cpp"}, got) {
		t.Errorf("changed = %v, want [src/app.cpp]", got)
	}
}

func TestWatcherRunTwice(t *testing.T) {
	t.Parallel()

	w, err := New(Config{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(t.Context())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)

	if err := w.Run(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run() = %v, want ErrAlreadyRunning", err)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run() returned error on cancel: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancellation")
	}
}

func TestNewRejectsBadPattern(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Dir: t.TempDir(), Ignore: []string{"out/[**"}})
	if err == nil {
		t.Fatal("expected an error for an invalid pattern")
	}
}

func TestIgnoredDir(t *testing.T) {
	t.Parallel()

	w := &Watcher{ignores: slices.Concat(alwaysIgnored, []string{"out/**"})}
	tests := []struct {
		rel  string
		want bool
	}{
		{".git", true},
		{filepath.Join("vendor", ".git"), true},
		{"out", true},
		{filepath.Join("out", "obj"), true},
		{"src", false},
		{"outside", false},
	}
	for _, tt := range tests {
		if got := w.ignoredDir(tt.rel); got != tt.want {
			t.Errorf("ignoredDir(%q) = %v, want %v", tt.rel, got, tt.want)
		}
	}
}
