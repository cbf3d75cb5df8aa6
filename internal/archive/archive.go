// Package archive discovers, extracts and removes the zip bundles that
// wrap exported records.
package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	apperrors "github.com/kimhsiao/recordkit/internal/errors"
	"github.com/kimhsiao/recordkit/internal/logging"
)

const (
	mimeZip      = "application/zip"
	mimeSevenZip = "application/x-7z-compressed"
)

// IsZip reports whether path holds a plain zip archive. Office documents and
// other zip-based containers are detected as their own types and excluded.
func IsZip(path string) bool {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return false
	}
	return mt.Is(mimeZip)
}

// Is7z reports whether path starts with the 7z signature.
func Is7z(path string) bool {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return false
	}
	return mt.Is(mimeSevenZip)
}

// FindArchives walks root and returns every zip archive found, in walk order.
func FindArchives(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logging.Warn("skipping unreadable entry", map[string]interface{}{"path": path, "error": err.Error()})
			return nil
		}
		if d.Type().IsRegular() && IsZip(path) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return out, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return out, nil
}

// Extract unpacks the zip at src into dest, refusing entries that would
// escape dest.
func Extract(src, dest string) error {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrArchive, "open "+src, err)
	}
	defer zr.Close()

	if err := os.MkdirAll(dest, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	cleanDest := filepath.Clean(dest) + string(os.PathSeparator)

	for _, f := range zr.File {
		target := filepath.Join(dest, f.Name)
		if !strings.HasPrefix(filepath.Clean(target)+string(os.PathSeparator), cleanDest) {
			return apperrors.New(apperrors.ErrArchive, fmt.Sprintf("entry %q escapes %s", f.Name, dest))
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		if err := writeEntry(f, target); err != nil {
			return apperrors.Wrap(apperrors.ErrArchive, "extract "+f.Name, err)
		}
	}
	return nil
}

func writeEntry(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// ExtractAll extracts every zip directly inside dir into a sibling folder
// named after the archive stem, then waits until each folder is visible.
// It returns the created folders. Archives that fail are logged and skipped.
func ExtractAll(ctx context.Context, dir string, timeout time.Duration) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var folders []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".zip") {
			continue
		}
		src := filepath.Join(dir, e.Name())
		dest := filepath.Join(dir, strings.TrimSuffix(e.Name(), ".zip"))
		if err := Extract(src, dest); err != nil {
			logging.Error("unzip failed", err, map[string]interface{}{"archive": src})
			continue
		}
		folders = append(folders, dest)
	}

	for _, f := range folders {
		if err := WaitForPath(ctx, f, timeout); err != nil {
			return folders, err
		}
	}
	return folders, nil
}

// UnzipInPlace extracts every zip under root next to itself and deletes the
// archive afterwards.
func UnzipInPlace(root string) (int, error) {
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return 0, apperrors.New(apperrors.ErrNotFound, "folder not found: "+root)
	}
	archives, err := FindArchives(root)
	if err != nil {
		return 0, err
	}
	logging.Info("unzipping archives", map[string]interface{}{"count": len(archives), "root": root})

	done := 0
	for _, a := range archives {
		if err := Extract(a, filepath.Dir(a)); err != nil {
			logging.Error("unzip failed", err, map[string]interface{}{"archive": a})
			continue
		}
		if err := os.Remove(a); err != nil {
			logging.Error("delete archive failed", err, map[string]interface{}{"archive": a})
			continue
		}
		done++
	}
	logging.Info("archives extracted", map[string]interface{}{"extracted": done, "found": len(archives), "root": root})
	return done, nil
}

// DeleteArchives removes every zip under root and returns how many were deleted.
func DeleteArchives(root string) (int, error) {
	archives, err := FindArchives(root)
	if err != nil {
		return 0, err
	}
	logging.Info("deleting archives", map[string]interface{}{"count": len(archives), "root": root})

	deleted := 0
	for _, a := range archives {
		if err := os.Remove(a); err != nil && !os.IsNotExist(err) {
			logging.Error("delete archive failed", err, map[string]interface{}{"archive": a})
			continue
		}
		deleted++
	}
	return deleted, nil
}
