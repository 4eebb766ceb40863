// SPDX-License-Identifier: MPL-2.0

package workspace

import (
	_ "embed"
	"errors"

	"kmake-cli/pkg/cueutil"
)

//go:embed schema.cue
var schemaBytes []byte

// ValidateTree checks a merged document against the #Workspace definition
// and every project record against #Project. filename prefixes error messages.
func ValidateTree(t Tree, filename string) error {
	if t.WorkspaceBlock() == nil {
		return &ValidationError{Reason: "missing workspace block"}
	}

	var errs []error
	if err := cueutil.Validate(schemaBytes, "#Workspace", map[string]any(t),
		cueutil.WithFilename(filename)); err != nil {
		errs = append(errs, err)
	}

	for _, name := range t.Records() {
		record, _ := t.Record(name)
		if !IsProjectRecord(record) {
			continue
		}
		if err := cueutil.Validate(schemaBytes, "#Project", record,
			cueutil.WithFilename(filename+": "+name)); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Reason: "schema", Cause: errors.Join(errs...)}
	}
	return nil
}
