// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	goruntime "runtime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

const (
	FormatTar    Format = "tar"
	FormatTarGz  Format = "tar.gz"
	FormatTarXz  Format = "tar.xz"
	FormatTarZst Format = "tar.zst"
	FormatZip    Format = "zip"
	FormatDMG    Format = "dmg"

	// DefaultMaxEntrySize bounds a single extracted file (4 GiB).
	DefaultMaxEntrySize int64 = 4 << 30
)

type (
	// Format is an archive container format.
	Format string

	// Extractor unpacks archives into a directory.
	Extractor struct {
		maxEntrySize int64
	}

	// Option configures an Extractor.
	Option func(*Extractor)
)

//nolint:gochecknoglobals // fixed registry
var (
	suffixFormats = []struct {
		suffix string
		format Format
	}{
		{".tar.gz", FormatTarGz},
		{".tgz", FormatTarGz},
		{".tar.xz", FormatTarXz},
		{".txz", FormatTarXz},
		{".tar.zst", FormatTarZst},
		{".tzst", FormatTarZst},
		{".tar", FormatTar},
		{".zip", FormatZip},
		{".dmg", FormatDMG},
	}

	mimeFormats = []struct {
		mime   string
		format Format
	}{
		{"application/zip", FormatZip},
		{"application/gzip", FormatTarGz},
		{"application/x-xz", FormatTarXz},
		{"application/zstd", FormatTarZst},
		{"application/x-tar", FormatTar},
		{"application/x-apple-diskimage", FormatDMG},
	}
)

// WithMaxEntrySize bounds the size of a single extracted file.
func WithMaxEntrySize(n int64) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxEntrySize = n
		}
	}
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{maxEntrySize: DefaultMaxEntrySize}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Detect returns the format of the archive at path. The file name suffix is
// checked first; otherwise the content is sniffed.
func Detect(path string) (Format, error) {
	lower := strings.ToLower(path)
	for _, sf := range suffixFormats {
		if strings.HasSuffix(lower, sf.suffix) {
			return sf.format, nil
		}
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "", fmt.Errorf("detect archive format: %w", err)
	}
	for m := mt; m != nil; m = m.Parent() {
		for _, mf := range mimeFormats {
			if m.Is(mf.mime) {
				return mf.format, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s (%s)", ErrUnsupportedFormat, filepath.Base(path), mt.String())
}

// Extract unpacks the archive at src into dest, creating dest if needed.
func (e *Extractor) Extract(ctx context.Context, src, dest string) error {
	format, err := Detect(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("create extraction directory: %w", err)
	}

	switch format {
	case FormatZip:
		return e.extractZip(ctx, src, dest)
	case FormatDMG:
		return extractDMG(ctx, src, dest)
	default:
		return e.extractTarFile(ctx, src, dest, format)
	}
}

func (e *Extractor) extractTarFile(ctx context.Context, src, dest string, format Format) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer func() { _ = f.Close() }() // read-only file handle

	var r io.Reader = f
	switch format {
	case FormatTarGz:
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("create gzip reader: %w", err)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	case FormatTarXz:
		xr, err := xz.NewReader(f)
		if err != nil {
			return fmt.Errorf("create xz reader: %w", err)
		}
		r = xr
	case FormatTarZst:
		zr, err := zstd.NewReader(f)
		if err != nil {
			return fmt.Errorf("create zstd reader: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	return e.extractTar(ctx, r, dest)
}

// safeJoin joins an archive entry name to dest, rejecting names that would
// resolve outside dest or, on Windows, open a device.
func safeJoin(dest, name string) (string, error) {
	name = filepath.FromSlash(name)
	if filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	if goruntime.GOOS == "windows" && reservedComponent(name) != "" {
		return "", fmt.Errorf("%w: reserved name %s", ErrUnsafePath, name)
	}
	target := filepath.Join(dest, name)
	if !within(dest, target) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return target, nil
}

// within reports whether path is dest or lies below it.
func within(dest, path string) bool {
	rel, err := filepath.Rel(dest, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// writeFile copies at most limit bytes from r to path. Reading more than
// limit bytes is an error.
func writeFile(path string, r io.Reader, mode os.FileMode, limit int64) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm()|0o200)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	n, err := io.Copy(f, io.LimitReader(r, limit+1))
	if err != nil {
		return fmt.Errorf("extract %s: %w", filepath.Base(path), err)
	}
	if n > limit {
		return fmt.Errorf("extract %s: entry exceeds %d bytes", filepath.Base(path), limit)
	}
	return nil
}
