// SPDX-License-Identifier: MPL-2.0

package workspace

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWalk(t *testing.T) {
	t.Parallel()

	in := Tree{
		"app": map[string]any{
			"defines": []any{"a", map[string]any{"k": "v"}, 3, true},
			"name":    "x",
		},
	}

	got := Walk(in, StringLeaves(strings.ToUpper))

	want := Tree{
		"app": map[string]any{
			"defines": []any{"A", map[string]any{"k": "V"}, 3, true},
			"name":    "X",
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Walk() mismatch (-want +got):\n%s", diff)
	}

	if in["app"].(map[string]any)["name"] != "x" {
		t.Error("Walk() must not modify its input")
	}
}
