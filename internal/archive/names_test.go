// SPDX-License-Identifier: MPL-2.0

package archive

import "testing"

func TestReservedComponent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want string
	}{
		{"CON", "CON"},
		{"docs/nul.txt", "nul.txt"},
		{"lib/com1.tar.gz/readme", "com1.tar.gz"},
		{"aux /x", "aux "},
		{"console.txt", ""},
		{"include/lpt10.h", ""},
		{"src/main.cpp", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := reservedComponent(tt.name); got != tt.want {
			t.Errorf("reservedComponent(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
