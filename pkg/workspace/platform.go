// SPDX-License-Identifier: MPL-2.0

package workspace

import (
	"fmt"
	"slices"
	"strings"
)

const (
	TemplateVS2019   Template = "vs2019"
	TemplateXcodeMac Template = "xcodeMac"
	TemplateMakefile Template = "makefile"
)

type (
	// Template is the canonical name of a project-file emitter.
	Template string

	// InvalidTemplateError is returned when a template name or alias is not recognized.
	InvalidTemplateError struct {
		Value string
	}

	// Platform describes the platform family a template targets.
	Platform struct {
		// Name is the family name that platform: selectors are matched against.
		Name     string
		Template Template
		// Archs lists the supported architectures. The first one is the default target.
		Archs []Arch

		assetDir        string
		assetDirsByType map[OutputType]string
	}
)

//nolint:gochecknoglobals // fixed registry
var (
	templateAliases = map[string]Template{
		"vs":       TemplateVS2019,
		"vs2019":   TemplateVS2019,
		"mac":      TemplateXcodeMac,
		"xcodemac": TemplateXcodeMac,
		"xcode":    TemplateXcodeMac,
		"mk":       TemplateMakefile,
		"makefile": TemplateMakefile,
	}

	platforms = map[Template]Platform{
		TemplateXcodeMac: {
			Name:            "mac",
			Template:        TemplateXcodeMac,
			Archs:           []Arch{"x86_64"},
			assetDir:        "assets",
			assetDirsByType: map[OutputType]string{OutputApp: "../Resources/assets", OutputFramework: "../Resources/assets"},
		},
		TemplateVS2019: {
			Name:     "windows",
			Template: TemplateVS2019,
			Archs:    []Arch{"x64", "win32"},
			assetDir: "../../assets",
		},
		TemplateMakefile: {
			Name:     "unix",
			Template: TemplateMakefile,
			Archs:    []Arch{"x86_64", "x86"},
			assetDir: "../../../assets",
		},
	}

	defaultTemplateByOS = map[string]Template{
		"darwin":  TemplateXcodeMac,
		"windows": TemplateVS2019,
		"linux":   TemplateMakefile,
	}
)

// ParseTemplate resolves a template name or alias, case-insensitively.
func ParseTemplate(name string) (Template, error) {
	if t, ok := templateAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return t, nil
	}
	return "", &InvalidTemplateError{Value: name}
}

// DefaultTemplate returns the template used on goos when none is requested.
func DefaultTemplate(goos string) Template {
	if t, ok := defaultTemplateByOS[goos]; ok {
		return t
	}
	return TemplateMakefile
}

// PlatformOf returns the registry entry for t.
func PlatformOf(t Template) (Platform, bool) {
	p, ok := platforms[t]
	if ok {
		p.Archs = slices.Clone(p.Archs)
	}
	return p, ok
}

// Supports reports whether a is one of the platform's architectures.
func (p Platform) Supports(a Arch) bool {
	return slices.Contains(p.Archs, a)
}

// AssetDir returns the asset directory relative to the built executable.
func (p Platform) AssetDir(o OutputType) string {
	if dir, ok := p.assetDirsByType[o]; ok {
		return dir
	}
	return p.assetDir
}

func (t Template) String() string { return string(t) }

// Error implements the error interface.
func (e *InvalidTemplateError) Error() string {
	return fmt.Sprintf("template %q not found (valid: vs2019, xcodeMac, makefile)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidTemplateError) Unwrap() error { return ErrInvalidTemplate }

// DefaultBuildSettings returns the settings every project starts from before
// workspace and project settings are applied.
func DefaultBuildSettings(goos string) map[string]any {
	cc, mk := "g++", "make"
	switch goos {
	case "darwin":
		cc = "clang++"
	case "windows":
		mk = "mingw32-make"
	}

	return map[string]any{
		"DISPLAY_NAME": "Test",

		"MACOSX_DEPLOYMENT_TARGET":    "10.15",
		"GCC_C_LANGUAGE_STANDARD":     "gnu11",
		"CLANG_CXX_LIBRARY":           "libc++",
		"CLANG_CXX_LANGUAGE_STANDARD": "gnu++17",
		"ORGANIZATION_NAME":           "Test Org",
		"PRODUCT_BUNDLE_IDENTIFIER":   "test.test.test",
		"HUMAN_READABLE_COPYRIGHT":    "Copyright",
		"BUNDLE_VERSION":              "1.0.0",

		"VS_C_RUNTIME":         "MT",
		"VS_LANGUAGE_STANDARD": "stdcpp17",

		"MK_CC":                    cc,
		"MK_MAKE":                  mk,
		"MK_DEFAULT_FLAGS":         "-fPIC -Wall -Wno-unused-command-line-argument",
		"MK_CPP_LANGUAGE_STANDARD": "-std=c++17",
		"MK_C_LANGUAGE_STANDARD":   "-std=c11",
		"MK_STD_LIB":               "-static-libstdc++ -lstdc++",
		"MK_DEBUG_LEVEL":           "-g",
		"MK_OPTIMIZATION":          "-O2",
		"MK_VERBOSE":               "",
		"MK_AR_FLAGS":              "-rvs",
	}
}
