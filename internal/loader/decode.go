// SPDX-License-Identifier: MPL-2.0

package loader

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"kmake-cli/pkg/cueutil"
)

// documentSchema accepts any struct; the workspace schema is applied after merging.
const documentSchema = `#Document: {...}`

type decodeFunc func(data []byte, filename string, maxSize int64) (map[string]any, error)

//nolint:gochecknoglobals // extension registry
var decoders = map[string]decodeFunc{
	".yml":  decodeYAML,
	".yaml": decodeYAML,
	".toml": decodeTOML,
	".cue":  decodeCUE,
}

// DocumentNames lists the file names probed when a directory is given, in order.
//
//nolint:gochecknoglobals // fixed probe order
var DocumentNames = []string{"kmake.yml", "kmake.yaml", "kmake.toml", "kmake.cue"}

func decoderFor(path string) (decodeFunc, error) {
	ext := strings.ToLower(filepath.Ext(path))
	dec, ok := decoders[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return dec, nil
}

func decodeYAML(data []byte, filename string, maxSize int64) (map[string]any, error) {
	if err := cueutil.CheckFileSize(data, maxSize, filename); err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return normalizeMap(doc), nil
}

func decodeTOML(data []byte, filename string, maxSize int64) (map[string]any, error) {
	if err := cueutil.CheckFileSize(data, maxSize, filename); err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return normalizeMap(doc), nil
}

func decodeCUE(data []byte, filename string, maxSize int64) (map[string]any, error) {
	result, err := cueutil.ParseAndDecode[map[string]any]([]byte(documentSchema), data, "#Document",
		cueutil.WithFilename(filename), cueutil.WithMaxFileSize(maxSize))
	if err != nil {
		return nil, err
	}
	return normalizeMap(*result.Value), nil
}

// normalizeMap converts nested mappings with non-string keys into
// map[string]any and integer widths into int, so every decoder yields the
// same tree shape.
func normalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return normalizeMap(val)
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[fmt.Sprint(k)] = normalizeValue(elem)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = normalizeValue(elem)
		}
		return out
	case int64:
		return int(val)
	default:
		return v
	}
}
