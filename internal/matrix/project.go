// SPDX-License-Identifier: MPL-2.0

package matrix

import (
	"fmt"
	"maps"
	"slices"

	"kmake-cli/pkg/workspace"
)

const (
	FieldDependencies      = "dependencies"
	FieldEmbedDependencies = "embedDependencies"
	FieldIncludePaths      = "includePaths"
	FieldLibPaths          = "libPaths"
	FieldDefines           = "defines"
	FieldBuildFlags        = "buildFlags"
	FieldLinkerFlags       = "linkerFlags"
	FieldDownloads         = "downloads"
	FieldHooks             = "hooks"

	fieldType        = "type"
	fieldOutputType  = "outputType"
	fieldWorkingDir  = "workingDir"
	fieldSources     = "sources"
	fieldSourcesBase = "sourcesBase"
	fieldSettings    = "settings"
	fieldAssets      = "assets"
	fieldChecks      = "checks"
)

// Fields lists every matrix-capable project field except hooks.
//
//nolint:gochecknoglobals // fixed registry
var Fields = []string{
	FieldDependencies, FieldEmbedDependencies, FieldIncludePaths, FieldLibPaths,
	FieldDefines, FieldBuildFlags, FieldLinkerFlags, FieldDownloads,
}

// IsField reports whether name is a matrix-capable project field or hook point.
func IsField(name string) bool {
	return slices.Contains(Fields, name) || name == FieldHooks || slices.Contains(workspace.HookPoints, workspace.HookPoint(name))
}

func knownKey(name string) bool {
	switch name {
	case fieldType, fieldOutputType, fieldWorkingDir, fieldSources, fieldSourcesBase,
		fieldSettings, fieldAssets, fieldChecks:
		return true
	default:
		return IsField(name)
	}
}

func (res *resolution) project(name string, record, settings map[string]any) (*workspace.Project, error) {
	outputType := workspace.OutputType(fmt.Sprint(record[fieldOutputType]))
	if ok, errs := outputType.IsValid(); !ok {
		return nil, &workspace.ValidationError{Project: name, Field: fieldOutputType, Cause: errs[0]}
	}

	p := &workspace.Project{
		Name:        name,
		Type:        workspace.KindProject,
		OutputType:  outputType,
		Sources:     stringList(record[fieldSources]),
		SourcesBase: stringList(record[fieldSourcesBase]),
		Hooks:       map[workspace.HookPoint]workspace.Matrix[string]{},
		Extra:       map[string]any{},
	}
	p.WorkingDir, _ = record[fieldWorkingDir].(string)
	if s, ok := record[fieldSettings].(map[string]any); ok {
		p.Settings = maps.Clone(s)
	}

	declared := func(field string) any {
		if v, ok := record[field]; ok {
			return v
		}
		return settings[field]
	}
	strs := func(field string) workspace.Matrix[string] {
		subject := name + "." + field
		return convert(res.expand(subject, workspace.ParseField(declared(field))), func(v any) []string {
			return res.toStrings(subject, v)
		})
	}

	p.Dependencies = strs(FieldDependencies)
	p.EmbedDependencies = strs(FieldEmbedDependencies)
	p.IncludePaths = strs(FieldIncludePaths)
	p.LibPaths = strs(FieldLibPaths)
	p.BuildFlags = strs(FieldBuildFlags)
	p.LinkerFlags = strs(FieldLinkerFlags)

	p.Defines = convert(res.expand(name+"."+FieldDefines, workspace.ParseField(declared(FieldDefines))), toDefines)
	p.Defines.Each(res.archs, res.configs, func(a workspace.Arch, c workspace.Config, defines []workspace.Define) {
		p.Defines.Set(a, c, workspace.CollapseDefines(defines))
	})

	var errs []error
	unknownHashes := map[string]bool{}
	p.Downloads = convert(res.expand(name+"."+FieldDownloads, workspace.ParseField(declared(FieldDownloads))), func(v any) []workspace.Download {
		dl, ignored, err := decodeDownload(v, p.WorkingDir)
		if err != nil {
			errs = append(errs, err)
			return nil
		}
		for _, algo := range ignored {
			unknownHashes[algo] = true
		}
		return []workspace.Download{dl}
	})
	if len(errs) > 0 {
		return nil, &workspace.ValidationError{Project: name, Field: FieldDownloads, Cause: errs[0]}
	}
	for _, algo := range slices.Sorted(maps.Keys(unknownHashes)) {
		res.warn(name+"."+FieldDownloads, "unknown hash algorithm "+algo+", ignored")
	}

	nested, _ := declared(FieldHooks).(map[string]any)
	for _, point := range workspace.HookPoints {
		var items []any
		if v, ok := record[string(point)]; ok {
			items = appendItems(items, v)
		} else if v, ok := settings[string(point)]; ok {
			items = appendItems(items, v)
		}
		if v, ok := nested[string(point)]; ok {
			items = appendItems(items, v)
		}
		subject := name + "." + string(point)
		p.Hooks[point] = convert(res.expand(subject, workspace.ParseField(items)), func(v any) []string {
			return res.toStrings(subject, v)
		})
	}

	assets, err := decodeAssets(record[fieldAssets])
	if err != nil {
		return nil, &workspace.ValidationError{Project: name, Field: fieldAssets, Cause: err}
	}
	p.Assets = assets

	for k, v := range record {
		if !knownKey(k) {
			p.Extra[k] = workspace.CloneValue(v)
		}
	}
	return p, nil
}

func appendItems(items []any, v any) []any {
	if list, ok := v.([]any); ok {
		return append(items, list...)
	}
	return append(items, v)
}

// convert maps every value of a raw matrix to zero or more typed values.
func convert[T any](m workspace.Matrix[any], fn func(any) []T) workspace.Matrix[T] {
	out := make(workspace.Matrix[T], len(m))
	for a, byConfig := range m {
		for c, values := range byConfig {
			typed := make([]T, 0, len(values))
			for _, v := range values {
				typed = append(typed, fn(v)...)
			}
			out.Set(a, c, typed)
		}
	}
	return out
}

func (res *resolution) toStrings(subject string, v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return []string{val}
	case []any:
		var out []string
		for _, elem := range val {
			out = append(out, res.toStrings(subject, elem)...)
		}
		return out
	case map[string]any:
		res.warn(subject, "mapping value ignored where a list of strings is expected")
		return nil
	default:
		return []string{fmt.Sprint(val)}
	}
}
