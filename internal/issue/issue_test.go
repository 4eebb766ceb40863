// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	tests := []struct {
		id       Id
		wantNil  bool
		contains string
	}{
		{WorkspaceNotFoundId, false, "No workspace file found"},
		{WorkspaceParseErrorId, false, "Failed to parse the workspace"},
		{ImportNotFoundId, false, "Imported document not found"},
		{ProjectNotFoundId, false, "Project not found"},
		{TemplateNotFoundId, false, "Template not found"},
		{DependencyCycleId, false, "Dependency cycle"},
		{IntegrityCheckFailedId, false, "integrity check failed"},
		{CapabilityUnavailableId, false, "not supported on this host"},
		{HookFailedId, false, "Hook failed"},
		{ConfigLoadFailedId, false, "Failed to load configuration"},
		{Id(9999), true, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.contains, func(t *testing.T) {
			issue := Get(tt.id)

			if tt.wantNil {
				if issue != nil {
					t.Errorf("Get(%d) should return nil", tt.id)
				}
				return
			}

			if issue == nil {
				t.Fatalf("Get(%d) returned nil", tt.id)
			}
			if issue.Id() != tt.id {
				t.Errorf("Get(%d).Id() = %d", tt.id, issue.Id())
			}
			if !strings.Contains(string(issue.MarkdownMsg()), tt.contains) {
				t.Errorf("Get(%d).MarkdownMsg() should contain %q", tt.id, tt.contains)
			}
		})
	}
}

func TestValues(t *testing.T) {
	values := Values()

	if len(values) != len(issues) {
		t.Fatalf("Values() returned %d issues, want %d", len(values), len(issues))
	}

	for i, issue := range values {
		if want := Id(i + 1); issue.Id() != want {
			t.Errorf("Values()[%d].Id() = %d, want %d", i, issue.Id(), want)
		}
	}
}

func TestIssue_Render(t *testing.T) {
	originalRender := render
	defer func() { render = originalRender }()

	render = func(in string, _ string) (string, error) {
		return in, nil
	}

	withLinks := &Issue{
		id:       Id(9999),
		mdMsg:    "# Test Issue",
		docLinks: []HttpLink{"https://docs.example.com"},
	}
	rendered, err := withLinks.Render("")
	if err != nil {
		t.Fatalf("Render() returned error: %v", err)
	}
	if !strings.Contains(rendered, "See also") {
		t.Error("Render() with links should contain 'See also'")
	}

	rendered, err = Get(IntegrityCheckFailedId).Render("")
	if err != nil {
		t.Fatalf("Render() returned error: %v", err)
	}
	if strings.Contains(rendered, "See also") {
		t.Error("Render() without links should not contain 'See also'")
	}
}

func TestIssue_DocLinksClone(t *testing.T) {
	i := &Issue{docLinks: []HttpLink{"a"}}
	links := i.DocLinks()
	links[0] = "modified"
	if i.DocLinks()[0] != "a" {
		t.Error("DocLinks() should return a clone")
	}
}
