// SPDX-License-Identifier: MPL-2.0

//go:build darwin

package archive

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
)

// extractDMG mounts the image read-only, copies its contents into dest and
// detaches it again.
func extractDMG(ctx context.Context, src, dest string) (err error) {
	mountPoint, err := os.MkdirTemp("", "kmake-dmg-*")
	if err != nil {
		return fmt.Errorf("create mount point: %w", err)
	}
	defer func() { _ = os.Remove(mountPoint) }()

	attach := exec.CommandContext(ctx, "hdiutil", "attach", "-nobrowse", "-readonly", "-noautoopen", "-mountpoint", mountPoint, src)
	if out, err := attach.CombinedOutput(); err != nil {
		return fmt.Errorf("hdiutil attach: %w: %s", err, out)
	}
	defer func() {
		detach := exec.Command("hdiutil", "detach", mountPoint, "-force")
		if out, detachErr := detach.CombinedOutput(); detachErr != nil && err == nil {
			err = fmt.Errorf("hdiutil detach: %w: %s", detachErr, out)
		}
	}()

	return copyTree(ctx, mountPoint, dest)
}

func copyTree(ctx context.Context, src, dest string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)

		switch {
		case d.IsDir():
			return os.MkdirAll(target, 0o755)
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			_ = os.Remove(target)
			return os.Symlink(link, target)
		case d.Type().IsRegular():
			info, err := d.Info()
			if err != nil {
				return err
			}
			in, err := os.Open(path)
			if err != nil {
				return err
			}
			defer func() { _ = in.Close() }()
			return writeFile(target, in, info.Mode(), info.Size())
		default:
			return nil
		}
	})
}
