// SPDX-License-Identifier: MPL-2.0

package check

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/opencontainers/go-digest"
	"gopkg.in/yaml.v3"

	"kmake-cli/pkg/workspace"
)

// CacheFile is the check cache file name, stored in the project directory.
const CacheFile = ".check.cache"

// Cache maps check keys to their recorded result.
type Cache map[string]bool

// Key returns the identity of a check: the hex SHA-256 of its JSON form.
func Key(c workspace.Check) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode check: %w", err)
	}
	return digest.FromBytes(data).Encoded(), nil
}

// LoadCache reads the cache at path. A missing file yields an empty cache.
func LoadCache(path string) (Cache, error) {
	cache := Cache{}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cache, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read check cache: %w", err)
	}
	if err := yaml.Unmarshal(data, &cache); err != nil {
		return nil, fmt.Errorf("parse check cache %s: %w", path, err)
	}
	if cache == nil {
		cache = Cache{}
	}
	return cache, nil
}

// Save writes the cache to path.
func (c Cache) Save(path string) error {
	data, err := yaml.Marshal(map[string]bool(c))
	if err != nil {
		return fmt.Errorf("encode check cache: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write check cache: %w", err)
	}
	return nil
}
