// SPDX-License-Identifier: MPL-2.0

//go:build !darwin

package archive

import (
	"context"
	"runtime"
)

func extractDMG(context.Context, string, string) error {
	return &CapabilityError{Operation: "mounting disk images", Platform: runtime.GOOS}
}
