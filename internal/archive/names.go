// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"path/filepath"
	"strings"
)

// windowsReserved are device names Windows refuses as file names, with or
// without an extension.
//
//nolint:gochecknoglobals // fixed table
var windowsReserved = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true,
	"COM5": true, "COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true,
	"LPT5": true, "LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// reservedComponent returns the first component of the slash- or
// separator-delimited name that Windows treats as a device, or "".
func reservedComponent(name string) string {
	for part := range strings.FieldsFuncSeq(filepath.ToSlash(name), func(r rune) bool { return r == '/' }) {
		base, _, _ := strings.Cut(part, ".")
		if windowsReserved[strings.ToUpper(strings.TrimRight(base, " "))] {
			return part
		}
	}
	return ""
}
