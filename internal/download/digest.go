// SPDX-License-Identifier: MPL-2.0

package download

import (
	"crypto/md5"  //nolint:gosec // declared digests may use md5
	"crypto/sha1" //nolint:gosec // declared digests may use sha1
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/opencontainers/go-digest"

	"kmake-cli/pkg/workspace"
)

// Key returns the identity of a descriptor: the hex SHA-256 of its JSON form.
func Key(dl workspace.Download) (string, error) {
	data, err := json.Marshal(dl)
	if err != nil {
		return "", fmt.Errorf("encode download descriptor: %w", err)
	}
	return digest.FromBytes(data).Encoded(), nil
}

func newHash(algorithm string) (hash.Hash, error) {
	switch algorithm {
	case "md5":
		return md5.New(), nil //nolint:gosec // see import
	case "sha1":
		return sha1.New(), nil //nolint:gosec // see import
	}
	alg := digest.Algorithm(algorithm)
	if !alg.Available() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, algorithm)
	}
	return alg.Hash(), nil
}

// HashFile returns the lowercase hex digest of the file at path.
func HashFile(path, algorithm string) (_ string, err error) {
	h, err := newHash(algorithm)
	if err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }() // read-only file handle

	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing file %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify checks every declared digest of dl against the file at path, in
// algorithm name order. The first mismatch is returned as an IntegrityError.
func Verify(dl workspace.Download, path string) error {
	for _, algorithm := range dl.SortedHashAlgorithms() {
		expected := strings.ToLower(strings.TrimSpace(dl.Hashes[algorithm]))
		got, err := HashFile(path, algorithm)
		if err != nil {
			return err
		}
		if got != expected {
			return &IntegrityError{URL: dl.URL, Path: path, Algorithm: algorithm, Expected: expected, Got: got}
		}
	}
	return nil
}
