// SPDX-License-Identifier: MPL-2.0

package matrix

import (
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"kmake-cli/pkg/workspace"
)

var (
	errDownloadShape = errors.New("download must be a mapping")
	errDownloadURL   = errors.New("download requires url and dest")
	errAssetShape    = errors.New("asset must be a string or a mapping with source")
)

func decodeWorkspace(block map[string]any) workspace.Workspace {
	ws := workspace.Workspace{Content: stringList(block["content"])}
	ws.Name, _ = block["name"].(string)
	if s, ok := block["settings"].(map[string]any); ok {
		ws.Settings = maps.Clone(s)
	}
	return ws
}

func decodeVariables(raw any) map[string]string {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	vars := make(map[string]string, len(m))
	for k, v := range m {
		vars[k] = fmt.Sprint(v)
	}
	return vars
}

// decodeChecks reads a name to probe mapping, sorted by name.
func decodeChecks(raw any) []workspace.Check {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	checks := make([]workspace.Check, 0, len(m))
	for _, name := range slices.Sorted(maps.Keys(m)) {
		checks = append(checks, workspace.Check{Name: name, Probe: fmt.Sprint(m[name])})
	}
	return checks
}

func mergeChecks(into, more []workspace.Check) []workspace.Check {
	for _, c := range more {
		if !slices.Contains(into, c) {
			into = append(into, c)
		}
	}
	return into
}

func stringList(raw any) []string {
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, elem := range v {
			if elem == nil {
				continue
			}
			out = append(out, fmt.Sprint(elem))
		}
		return out
	default:
		return []string{fmt.Sprint(v)}
	}
}

// toDefines accepts "NAME", "NAME=value" and {NAME: value} mappings.
func toDefines(v any) []workspace.Define {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		if name, value, ok := strings.Cut(val, "="); ok {
			return []workspace.Define{{Name: name, Value: value, HasValue: true}}
		}
		return []workspace.Define{{Name: val}}
	case []any:
		var out []workspace.Define
		for _, elem := range val {
			out = append(out, toDefines(elem)...)
		}
		return out
	case map[string]any:
		out := make([]workspace.Define, 0, len(val))
		for _, name := range slices.Sorted(maps.Keys(val)) {
			if val[name] == nil {
				out = append(out, workspace.Define{Name: name})
				continue
			}
			out = append(out, workspace.Define{Name: name, Value: fmt.Sprint(val[name]), HasValue: true})
		}
		return out
	default:
		return []workspace.Define{{Name: fmt.Sprint(val)}}
	}
}

// decodeDownload reads a download mapping. Hash digests may be given as
// top-level algorithm keys or under hashes. Keys under hashes that name no
// known algorithm are skipped and returned as ignored. A missing workingDir
// defaults to the project directory.
func decodeDownload(raw any, projectDir string) (dl workspace.Download, ignored []string, err error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return workspace.Download{}, nil, fmt.Errorf("%w, got %T", errDownloadShape, raw)
	}

	dl.URL, _ = m["url"].(string)
	dl.Dest, _ = m["dest"].(string)
	if dl.URL == "" || dl.Dest == "" {
		return workspace.Download{}, nil, errDownloadURL
	}

	dl.WorkingDir, _ = m["workingDir"].(string)
	if dl.WorkingDir == "" {
		dl.WorkingDir = projectDir
	} else if !filepath.IsAbs(dl.WorkingDir) && projectDir != "" {
		dl.WorkingDir = filepath.Join(projectDir, dl.WorkingDir)
	}

	for _, algo := range workspace.HashAlgorithms {
		if digest, ok := m[algo].(string); ok && digest != "" {
			setHash(&dl, algo, digest)
		}
	}
	if hashes, ok := m["hashes"].(map[string]any); ok {
		for algo, digest := range hashes {
			name := strings.ToLower(algo)
			if !workspace.IsHashAlgorithm(name) {
				ignored = append(ignored, algo)
				continue
			}
			setHash(&dl, name, fmt.Sprint(digest))
		}
	}

	dl.PostCmds = postCmdList(m["postCmds"])
	return dl, ignored, nil
}

func setHash(dl *workspace.Download, algo, digest string) {
	if dl.Hashes == nil {
		dl.Hashes = map[string]string{}
	}
	dl.Hashes[algo] = strings.ToLower(strings.TrimSpace(digest))
}

func postCmdList(raw any) []workspace.PostCmd {
	var items []any
	switch v := raw.(type) {
	case nil:
		return nil
	case []any:
		items = v
	default:
		items = []any{v}
	}

	cmds := make([]workspace.PostCmd, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			cmds = append(cmds, workspace.PostCmd{Cmd: v})
		case map[string]any:
			var pc workspace.PostCmd
			pc.ConvertTo, _ = v["convertTo"].(string)
			pc.ExtractTo, _ = v["extractTo"].(string)
			pc.Cmd, _ = v["cmd"].(string)
			cmds = append(cmds, pc)
		}
	}
	return cmds
}

// decodeAssets accepts a single source string, or a list of source strings
// and {source, destination, exclude} mappings.
func decodeAssets(raw any) ([]workspace.Asset, error) {
	var items []any
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []any:
		items = v
	default:
		items = []any{v}
	}

	assets := make([]workspace.Asset, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			assets = append(assets, workspace.Asset{Source: v})
		case map[string]any:
			source, _ := v["source"].(string)
			if source == "" {
				return nil, errAssetShape
			}
			dest, _ := v["destination"].(string)
			assets = append(assets, workspace.Asset{Source: source, Destination: dest, Exclude: stringList(v["exclude"])})
		default:
			return nil, fmt.Errorf("%w, got %T", errAssetShape, item)
		}
	}
	return assets, nil
}
