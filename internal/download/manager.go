// SPDX-License-Identifier: MPL-2.0

package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"kmake-cli/internal/archive"
	"kmake-cli/internal/imageconv"
	"kmake-cli/internal/runtime"
	"kmake-cli/pkg/workspace"
)

// Stage is the warning stage name reported by the manager.
const Stage = "downloads"

type (
	// Extractor unpacks an archive into a directory.
	Extractor interface {
		Extract(ctx context.Context, src, dest string) error
	}

	// Converter re-encodes an image into the format implied by dest.
	Converter interface {
		Convert(ctx context.Context, src, dest string) error
	}

	// Manager runs the download stage.
	Manager struct {
		fetcher     Fetcher
		extractor   Extractor
		converter   Converter
		runner      runtime.Runner
		logger      *log.Logger
		cachePath   string
		useCache    bool
		concurrency int
		timeout     time.Duration
	}

	// Option configures a Manager.
	Option func(*Manager)

	// Result is the outcome of Run.
	Result struct {
		// Fetched counts descriptors downloaded in this run.
		Fetched int
		// Skipped counts descriptors satisfied by the cache.
		Skipped  int
		Warnings []workspace.ResolutionWarning
	}

	descriptor struct {
		key string
		dl  workspace.Download
	}

	outcome struct {
		fetched   bool
		completed bool
		warnings  []workspace.ResolutionWarning
	}
)

// WithFetcher sets the network capability.
func WithFetcher(f Fetcher) Option {
	return func(m *Manager) { m.fetcher = f }
}

// WithExtractor sets the archive capability used by extractTo post-commands.
func WithExtractor(e Extractor) Option {
	return func(m *Manager) { m.extractor = e }
}

// WithConverter sets the image capability used by convertTo post-commands.
func WithConverter(c Converter) Option {
	return func(m *Manager) { m.converter = c }
}

// WithRunner sets the shell used by cmd post-commands.
func WithRunner(r runtime.Runner) Option {
	return func(m *Manager) { m.runner = r }
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithCache sets the cache file location and whether recorded descriptors
// may be skipped. The file is rewritten after every run either way.
func WithCache(path string, use bool) Option {
	return func(m *Manager) {
		m.cachePath = path
		m.useCache = use
	}
}

// WithConcurrency bounds the number of descriptors processed at once.
// Values below 1 mean 1.
func WithConcurrency(n int) Option {
	return func(m *Manager) { m.concurrency = max(n, 1) }
}

// WithTimeout bounds every single fetch. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) { m.timeout = d }
}

// New creates a Manager with HTTP fetching, the default archive extractor,
// the image converter and a virtual shell.
func New(opts ...Option) *Manager {
	m := &Manager{
		fetcher:     NewHTTPFetcher(),
		extractor:   archive.New(),
		converter:   imageconv.New(),
		logger:      log.New(io.Discard),
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.runner == nil {
		m.runner = runtime.NewShell(m.logger)
	}
	return m
}

// Descriptors returns the distinct download descriptors of all content
// projects across every active arch and config, in first-seen order.
func Descriptors(spec *workspace.Spec) ([]workspace.Download, error) {
	ds, err := collect(spec)
	if err != nil {
		return nil, err
	}
	out := make([]workspace.Download, len(ds))
	for i, d := range ds {
		out[i] = d.dl
	}
	return out, nil
}

func collect(spec *workspace.Spec) ([]descriptor, error) {
	var out []descriptor
	seen := make(map[string]bool)
	for _, p := range spec.ContentProjects() {
		var err error
		p.Downloads.Each(spec.Archs, spec.Configs, func(_ workspace.Arch, _ workspace.Config, dls []workspace.Download) {
			for _, dl := range dls {
				if err != nil {
					return
				}
				var key string
				if key, err = Key(dl); err != nil {
					return
				}
				if !seen[key] {
					seen[key] = true
					out = append(out, descriptor{key: key, dl: dl})
				}
			}
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Run downloads every descriptor of spec that is not satisfied by the cache.
// An IntegrityError, a failed fetch and a failed extraction or conversion
// abort the run. A failing cmd post-command is reported as a warning and
// leaves its descriptor incomplete.
func (m *Manager) Run(ctx context.Context, spec *workspace.Spec) (_ *Result, err error) {
	descriptors, err := collect(spec)
	if err != nil {
		return nil, err
	}

	previous := Cache{}
	if m.useCache && m.cachePath != "" {
		if previous, err = LoadCache(m.cachePath); err != nil {
			return nil, err
		}
	}

	outcomes := make([]*outcome, len(descriptors))
	var mu sync.Mutex
	current := Cache{}

	defer func() {
		if m.cachePath == "" {
			return
		}
		if saveErr := current.Save(m.cachePath); saveErr != nil {
			err = errors.Join(err, saveErr)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for i, d := range descriptors {
		g.Go(func() error {
			o, err := m.process(gctx, d, previous[d.key])
			if err != nil {
				return err
			}
			mu.Lock()
			outcomes[i] = o
			current[d.key] = o.completed
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{}
	for _, o := range outcomes {
		if o.fetched {
			res.Fetched++
		} else {
			res.Skipped++
		}
		res.Warnings = append(res.Warnings, o.warnings...)
	}
	return res, nil
}

func (m *Manager) process(ctx context.Context, d descriptor, cached bool) (*outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dl := d.dl
	dest := resolve(dl.WorkingDir, dl.Dest)
	o := &outcome{}

	if m.useCache && cached && fileExists(dest) {
		m.logger.Debug("download cached", "url", dl.URL, "dest", dest)
		o.completed = true
		return o, nil
	}

	size, err := m.size(ctx, dl.URL)
	if err != nil {
		o.warn(dl.URL, fmt.Sprintf("could not determine download size: %v", err))
		m.logger.Warn("could not determine download size", "url", dl.URL, "err", err)
		m.logger.Info("downloading", "url", dl.URL, "dest", dest)
	} else {
		m.logger.Info("downloading", "url", dl.URL, "dest", dest, "size", humanize.Bytes(uint64(size)))
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, fmt.Errorf("creating download directory: %w", err)
	}
	if err := m.fetch(ctx, dl.URL, dest); err != nil {
		return nil, err
	}
	o.fetched = true

	if err := Verify(dl, dest); err != nil {
		return nil, err
	}

	o.completed = true
	for _, pc := range dl.PostCmds {
		ok, err := m.postCmd(ctx, dl, dest, pc)
		if err != nil {
			return nil, err
		}
		if !ok {
			o.warn(dl.URL, fmt.Sprintf("post-command %q failed", pc.Cmd))
			o.completed = false
			break
		}
	}
	return o, nil
}

func (m *Manager) size(ctx context.Context, url string) (int64, error) {
	ctx, cancel := m.bounded(ctx)
	defer cancel()
	return m.fetcher.Size(ctx, url)
}

func (m *Manager) fetch(ctx context.Context, url, dest string) error {
	ctx, cancel := m.bounded(ctx)
	defer cancel()
	if err := m.fetcher.Fetch(ctx, url, dest); err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	return nil
}

func (m *Manager) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.timeout > 0 {
		return context.WithTimeout(ctx, m.timeout)
	}
	return context.WithCancel(ctx)
}

// postCmd runs one post-command. It reports false for a failing cmd, which is
// not fatal.
func (m *Manager) postCmd(ctx context.Context, dl workspace.Download, file string, pc workspace.PostCmd) (bool, error) {
	switch {
	case pc.ConvertTo != "":
		dest := resolve(dl.WorkingDir, pc.ConvertTo)
		m.logger.Info("converting", "src", file, "dest", dest)
		if err := m.converter.Convert(ctx, file, dest); err != nil {
			return false, fmt.Errorf("convert %s: %w", file, err)
		}
	case pc.ExtractTo != "":
		dest := resolve(dl.WorkingDir, pc.ExtractTo)
		m.logger.Info("extracting", "src", file, "dest", dest)
		if err := m.extractor.Extract(ctx, file, dest); err != nil {
			return false, fmt.Errorf("extract %s: %w", file, err)
		}
	case pc.Cmd != "":
		m.logger.Info("running post-command", "cmd", pc.Cmd, "dir", dl.WorkingDir)
		if res := m.runner.Run(ctx, pc.Cmd, dl.WorkingDir); !res.Success() {
			m.logger.Error("post-command failed", "cmd", pc.Cmd, "err", res.Err())
			return false, nil
		}
	}
	return true, nil
}

func (o *outcome) warn(subject, message string) {
	o.warnings = append(o.warnings, workspace.ResolutionWarning{Stage: Stage, Subject: subject, Message: message})
}

func resolve(dir, path string) string {
	if filepath.IsAbs(path) || dir == "" {
		return filepath.Clean(path)
	}
	return filepath.Join(dir, path)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
