// SPDX-License-Identifier: MPL-2.0

package download

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// CacheFile is the download cache file name, stored in the project directory.
const CacheFile = ".download.cache"

// Cache maps descriptor keys to their completion flag.
type Cache map[string]bool

// LoadCache reads the cache at path. A missing file yields an empty cache.
func LoadCache(path string) (Cache, error) {
	cache := Cache{}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cache, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read download cache: %w", err)
	}
	if err := yaml.Unmarshal(data, &cache); err != nil {
		return nil, fmt.Errorf("parse download cache %s: %w", path, err)
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
		return fmt.Errorf("encode download cache: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write download cache: %w", err)
	}
	return nil
}
