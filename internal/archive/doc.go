// SPDX-License-Identifier: MPL-2.0

// Package archive unpacks downloaded archives: tar (plain, gzip, xz and
// zstd compressed), zip, and macOS disk images. The format is taken from the
// file name and, failing that, sniffed from the content.
package archive
