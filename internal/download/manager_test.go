// SPDX-License-Identifier: MPL-2.0

package download

import (
	"context"
	"crypto/md5" //nolint:gosec // test digest
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/opencontainers/go-digest"

	"kmake-cli/internal/runtime"
	"kmake-cli/internal/testutil"
	"kmake-cli/pkg/workspace"
)

const payload = "artifact payload"

type (
	server struct {
		mu    sync.Mutex
		gets  map[string]int
		heads int
		// noHead answers HEAD requests with 405.
		noHead bool
	}

	fakeRunner struct {
		mu    sync.Mutex
		calls []string
		code  runtime.ExitCode
	}

	fakeExtractor struct {
		calls [][2]string
	}
)

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.URL.Path == "/missing" {
		http.NotFound(w, r)
		return
	}
	if r.Method == http.MethodHead {
		s.heads++
		if s.noHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
	} else {
		if s.gets == nil {
			s.gets = map[string]int{}
		}
		s.gets[r.URL.Path]++
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
	_, _ = w.Write([]byte(payload))
}

func (s *server) fetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.gets {
		n += c
	}
	return n
}

func (r *fakeRunner) Run(_ context.Context, command, dir string) *runtime.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, command)
	return &runtime.Result{Command: command, Dir: dir, ExitCode: r.code}
}

func (e *fakeExtractor) Extract(_ context.Context, src, dest string) error {
	e.calls = append(e.calls, [2]string{src, dest})
	return nil
}

func newServer(t *testing.T, s *server) string {
	t.Helper()
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)
	return ts.URL
}

// specWith builds a spec whose content projects all declare dls.
func specWith(dir string, names []string, dls ...workspace.Download) *workspace.Spec {
	archs := []workspace.Arch{"x86_64", "x86"}
	configs := []workspace.Config{workspace.ConfigRelease, workspace.ConfigDebug}
	spec := &workspace.Spec{
		Workspace: workspace.Workspace{Content: names},
		Projects:  map[string]*workspace.Project{},
		Archs:     archs,
		Configs:   configs,
	}
	for _, name := range names {
		m := workspace.NewMatrix[workspace.Download](archs, configs)
		m.AppendAll(dls...)
		spec.Projects[name] = &workspace.Project{Name: name, WorkingDir: dir, Downloads: m}
	}
	return spec
}

func TestRunDeduplicatesDescriptors(t *testing.T) {
	t.Parallel()

	srv := &server{}
	url := newServer(t, srv)
	dir := t.TempDir()
	dl := workspace.Download{URL: url + "/lib.bin", Dest: "vendor/lib.bin", WorkingDir: dir}

	m := New(WithRunner(&fakeRunner{}), WithConcurrency(4))
	res, err := m.Run(t.Context(), specWith(dir, []string{"app", "lib"}, dl))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := srv.fetches(); got != 1 {
		t.Errorf("fetches = %d, want 1", got)
	}
	if res.Fetched != 1 || res.Skipped != 0 {
		t.Errorf("Result = %+v, want 1 fetched", res)
	}
	if got := testutil.ReadFile(t, filepath.Join(dir, "vendor", "lib.bin")); got != payload {
		t.Errorf("downloaded content = %q, want %q", got, payload)
	}
}

func TestRunCacheSkip(t *testing.T) {
	t.Parallel()

	srv := &server{}
	url := newServer(t, srv)
	dir := t.TempDir()
	cachePath := filepath.Join(dir, CacheFile)
	dl := workspace.Download{URL: url + "/lib.bin", Dest: "lib.bin", WorkingDir: dir}
	spec := specWith(dir, []string{"app"}, dl)

	m := New(WithRunner(&fakeRunner{}), WithCache(cachePath, true))
	if _, err := m.Run(t.Context(), spec); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	res, err := m.Run(t.Context(), spec)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if got := srv.fetches(); got != 1 {
		t.Errorf("fetches across two runs = %d, want 1", got)
	}
	if res.Skipped != 1 {
		t.Errorf("second run Skipped = %d, want 1", res.Skipped)
	}

	key, err := Key(dl)
	if err != nil {
		t.Fatal(err)
	}
	cache, err := LoadCache(cachePath)
	if err != nil {
		t.Fatalf("LoadCache() error = %v", err)
	}
	if !cache[key] {
		t.Errorf("cache[%s] = false, want true", key)
	}
}

func TestRunCacheIgnoredWhenDisabledOrDestMissing(t *testing.T) {
	t.Parallel()

	srv := &server{}
	url := newServer(t, srv)
	dir := t.TempDir()
	cachePath := filepath.Join(dir, CacheFile)
	dl := workspace.Download{URL: url + "/lib.bin", Dest: "lib.bin", WorkingDir: dir}
	key, err := Key(dl)
	if err != nil {
		t.Fatal(err)
	}
	if err := (Cache{key: true}).Save(cachePath); err != nil {
		t.Fatal(err)
	}

	// Recorded but the destination does not exist yet.
	if _, err := New(WithRunner(&fakeRunner{}), WithCache(cachePath, true)).Run(t.Context(), specWith(dir, []string{"app"}, dl)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	// Destination exists but the cache is disabled.
	if _, err := New(WithRunner(&fakeRunner{}), WithCache(cachePath, false)).Run(t.Context(), specWith(dir, []string{"app"}, dl)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := srv.fetches(); got != 2 {
		t.Errorf("fetches = %d, want 2", got)
	}
}

func TestRunIntegrityAbort(t *testing.T) {
	t.Parallel()

	srv := &server{}
	url := newServer(t, srv)
	dir := t.TempDir()
	cachePath := filepath.Join(dir, CacheFile)
	dl := workspace.Download{
		URL:        url + "/lib.bin",
		Dest:       "lib.bin",
		WorkingDir: dir,
		Hashes:     map[string]string{"sha256": digest.FromString("something else").Encoded()},
		PostCmds:   []workspace.PostCmd{{Cmd: "touch done"}},
	}
	runner := &fakeRunner{}

	_, err := New(WithRunner(runner), WithCache(cachePath, true)).Run(t.Context(), specWith(dir, []string{"app"}, dl))
	if !errors.Is(err, ErrIntegrity) {
		t.Fatalf("Run() error = %v, want ErrIntegrity", err)
	}
	var ie *IntegrityError
	if !errors.As(err, &ie) || ie.Algorithm != "sha256" || ie.Got != digest.FromString(payload).Encoded() {
		t.Errorf("IntegrityError = %+v", ie)
	}
	if len(runner.calls) != 0 {
		t.Errorf("post-commands ran after integrity failure: %v", runner.calls)
	}

	key, _ := Key(dl)
	cache, err := LoadCache(cachePath)
	if err != nil {
		t.Fatalf("LoadCache() error = %v", err)
	}
	if _, ok := cache[key]; ok {
		t.Errorf("cache records descriptor after integrity failure: %v", cache)
	}
}

func TestRunVerifiesMatchingHashes(t *testing.T) {
	t.Parallel()

	url := newServer(t, &server{})
	dir := t.TempDir()
	sum := md5.Sum([]byte(payload)) //nolint:gosec // test digest
	dl := workspace.Download{
		URL:        url + "/lib.bin",
		Dest:       "lib.bin",
		WorkingDir: dir,
		Hashes: map[string]string{
			"md5":    hex.EncodeToString(sum[:]),
			"sha256": digest.FromString(payload).Encoded(),
			"sha512": digest.SHA512.FromString(payload).Encoded(),
		},
	}
	if _, err := New(WithRunner(&fakeRunner{})).Run(t.Context(), specWith(dir, []string{"app"}, dl)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestRunSizeFailureIsWarning(t *testing.T) {
	t.Parallel()

	srv := &server{noHead: true}
	url := newServer(t, srv)
	dir := t.TempDir()
	dl := workspace.Download{URL: url + "/lib.bin", Dest: "lib.bin", WorkingDir: dir}

	res, err := New(WithRunner(&fakeRunner{})).Run(t.Context(), specWith(dir, []string{"app"}, dl))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Stage != Stage {
		t.Errorf("Warnings = %v, want one %s warning", res.Warnings, Stage)
	}
	if !testutil.Exists(t, filepath.Join(dir, "lib.bin")) {
		t.Error("download missing after size failure")
	}
}

func TestRunFetchFailure(t *testing.T) {
	t.Parallel()

	url := newServer(t, &server{})
	dir := t.TempDir()
	dl := workspace.Download{URL: url + "/missing", Dest: "lib.bin", WorkingDir: dir}

	_, err := New(WithRunner(&fakeRunner{})).Run(t.Context(), specWith(dir, []string{"app"}, dl))
	if !errors.Is(err, ErrHTTPStatus) {
		t.Fatalf("Run() error = %v, want ErrHTTPStatus", err)
	}
	if testutil.Exists(t, filepath.Join(dir, "lib.bin")) {
		t.Error("failed fetch left a file at dest")
	}
}

func TestRunPostCommands(t *testing.T) {
	t.Parallel()

	url := newServer(t, &server{})
	dir := t.TempDir()
	dl := workspace.Download{
		URL:        url + "/pkg.zip",
		Dest:       "pkg.zip",
		WorkingDir: dir,
		PostCmds: []workspace.PostCmd{
			{ExtractTo: "pkg"},
			{Cmd: "echo unpacked"},
		},
	}
	runner := &fakeRunner{}
	extractor := &fakeExtractor{}

	res, err := New(WithRunner(runner), WithExtractor(extractor)).Run(t.Context(), specWith(dir, []string{"app"}, dl))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", res.Warnings)
	}
	want := [2]string{filepath.Join(dir, "pkg.zip"), filepath.Join(dir, "pkg")}
	if len(extractor.calls) != 1 || extractor.calls[0] != want {
		t.Errorf("Extract calls = %v, want [%v]", extractor.calls, want)
	}
	if len(runner.calls) != 1 || runner.calls[0] != "echo unpacked" {
		t.Errorf("Run calls = %v", runner.calls)
	}
}

func TestRunFailingCommandLeavesDescriptorIncomplete(t *testing.T) {
	t.Parallel()

	url := newServer(t, &server{})
	dir := t.TempDir()
	cachePath := filepath.Join(dir, CacheFile)
	dl := workspace.Download{
		URL:        url + "/lib.bin",
		Dest:       "lib.bin",
		WorkingDir: dir,
		PostCmds:   []workspace.PostCmd{{Cmd: "false"}, {Cmd: "echo never"}},
	}
	runner := &fakeRunner{code: 1}

	res, err := New(WithRunner(runner), WithCache(cachePath, true)).Run(t.Context(), specWith(dir, []string{"app"}, dl))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(res.Warnings) != 1 {
		t.Errorf("Warnings = %v, want 1", res.Warnings)
	}
	if len(runner.calls) != 1 {
		t.Errorf("Run calls = %v, want only the failing command", runner.calls)
	}

	key, _ := Key(dl)
	cache, err := LoadCache(cachePath)
	if err != nil {
		t.Fatal(err)
	}
	if done, ok := cache[key]; !ok || done {
		t.Errorf("cache[%s] = %v (present %v), want recorded false", key, done, ok)
	}
}

func TestKeyStable(t *testing.T) {
	t.Parallel()

	a := workspace.Download{URL: "https://example.com/a", Dest: "a", Hashes: map[string]string{"sha1": "x", "md5": "y"}}
	b := workspace.Download{URL: "https://example.com/a", Dest: "a", Hashes: map[string]string{"md5": "y", "sha1": "x"}}
	ka, err := Key(a)
	if err != nil {
		t.Fatal(err)
	}
	kb, _ := Key(b)
	if ka != kb {
		t.Errorf("Key differs for equal descriptors: %s != %s", ka, kb)
	}
	b.Dest = "b"
	if kc, _ := Key(b); kc == ka {
		t.Error("Key equal for different descriptors")
	}
}
