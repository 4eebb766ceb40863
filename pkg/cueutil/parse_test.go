// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"strings"
	"testing"
)

const testSchema = `
#Doc: {
	name:  string
	count: int & >=0 | *0
	tags?: [...string]
}
`

type testDoc struct {
	Name  string   `json:"name"`
	Count int      `json:"count"`
	Tags  []string `json:"tags,omitempty"`
}

func TestParseAndDecode(t *testing.T) {
	t.Parallel()

	result, err := ParseAndDecode[testDoc]([]byte(testSchema), []byte(`name: "kmake", tags: ["a"]`), "#Doc",
		WithFilename("doc.cue"))
	if err != nil {
		t.Fatalf("ParseAndDecode() error = %v", err)
	}
	if result.Value.Name != "kmake" {
		t.Errorf("Name = %q, want %q", result.Value.Name, "kmake")
	}
	if result.Value.Count != 0 {
		t.Errorf("Count = %d, want default 0", result.Value.Count)
	}
}

func TestParseAndDecode_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    string
		opts    []Option
		wantSub string
	}{
		{"syntax error", `name: "x`, nil, "doc.cue"},
		{"constraint violation", `name: "x", count: -1`, nil, "count"},
		{"missing required field", `count: 1`, nil, "name"},
		{"file too large", `name: "x"`, []Option{WithMaxFileSize(2)}, "exceeds maximum"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			opts := append([]Option{WithFilename("doc.cue")}, tt.opts...)
			_, err := ParseAndDecode[testDoc]([]byte(testSchema), []byte(tt.data), "#Doc", opts...)
			if err == nil {
				t.Fatal("ParseAndDecode() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error = %q, want substring %q", err.Error(), tt.wantSub)
			}
		})
	}
}

func TestParseAndDecode_UnknownDefinition(t *testing.T) {
	t.Parallel()

	_, err := ParseAndDecode[testDoc]([]byte(testSchema), []byte(`name: "x"`), "#Missing")
	if err == nil || !strings.Contains(err.Error(), "internal error") {
		t.Errorf("error = %v, want internal error", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := map[string]any{"name": "kmake", "tags": []any{"a", "b"}}
	if err := Validate([]byte(testSchema), "#Doc", valid, WithConcrete(false)); err != nil {
		t.Errorf("Validate(valid) error = %v", err)
	}

	invalid := map[string]any{"name": 42}
	err := Validate([]byte(testSchema), "#Doc", invalid, WithFilename("kmake.yml"))
	if err == nil {
		t.Fatal("Validate(invalid) expected error")
	}
	if !strings.HasPrefix(err.Error(), "kmake.yml: ") {
		t.Errorf("error = %q, want kmake.yml prefix", err.Error())
	}
}
