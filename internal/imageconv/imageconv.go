// SPDX-License-Identifier: MPL-2.0

// Package imageconv converts downloaded images between raster formats. The
// source format is sniffed from the content; the target format follows the
// destination file extension.
package imageconv

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp" // registers the webp decoder
)

// ErrUnsupportedTarget is returned when the destination extension names no
// known encoder.
var ErrUnsupportedTarget = errors.New("unsupported image target format")

type encoder func(w io.Writer, img image.Image) error

//nolint:gochecknoglobals // fixed registry
var encoders = map[string]encoder{
	".png":  png.Encode,
	".jpg":  jpegEncode,
	".jpeg": jpegEncode,
	".gif":  gifEncode,
	".bmp":  bmp.Encode,
	".tif":  tiffEncode,
	".tiff": tiffEncode,
}

func gifEncode(w io.Writer, img image.Image) error {
	return gif.Encode(w, img, nil)
}

func jpegEncode(w io.Writer, img image.Image) error {
	return jpeg.Encode(w, img, &jpeg.Options{Quality: 95})
}

func tiffEncode(w io.Writer, img image.Image) error {
	return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
}

// Converter converts images.
type Converter struct{}

// New creates a Converter.
func New() *Converter { return &Converter{} }

// Convert decodes src and writes it to dest in the format named by dest's
// extension. Parent directories of dest are created.
func (*Converter) Convert(ctx context.Context, src, dest string) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	enc, ok := encoders[strings.ToLower(filepath.Ext(dest))]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedTarget, filepath.Base(dest))
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer func() { _ = in.Close() }() // read-only

	img, format, err := image.Decode(in)
	if err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(src), err)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if err := enc(out, img); err != nil {
		return fmt.Errorf("encode %s from %s: %w", filepath.Base(dest), format, err)
	}
	return nil
}
