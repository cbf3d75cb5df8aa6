package reorganize

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/kimhsiao/recordkit/internal/errors"
	"github.com/kimhsiao/recordkit/internal/logging"
)

// move renames src to dest, or merges src into dest when dest already exists.
func move(src, dest string) (bool, error) {
	if filepath.Clean(src) == filepath.Clean(dest) {
		return false, nil
	}
	if _, err := os.Stat(src); err != nil {
		return false, apperrors.Wrap(apperrors.ErrFolderMove, "source missing", err)
	}

	if _, err := os.Stat(dest); err == nil {
		if err := mergeDir(src, dest); err != nil {
			return true, apperrors.Wrap(apperrors.ErrFolderMove, fmt.Sprintf("merge %s into %s", src, dest), err)
		}
		if err := os.RemoveAll(src); err != nil {
			return true, apperrors.Wrap(apperrors.ErrFolderMove, "remove merged source "+src, err)
		}
		return true, nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return false, apperrors.Wrap(apperrors.ErrFolderMove, "create parent of "+dest, err)
	}
	if err := os.Rename(src, dest); err != nil {
		// cross-device rename: fall back to copy and delete
		if err := mergeDir(src, dest); err != nil {
			return false, apperrors.Wrap(apperrors.ErrFolderMove, fmt.Sprintf("move %s to %s", src, dest), err)
		}
		if err := os.RemoveAll(src); err != nil {
			return false, apperrors.Wrap(apperrors.ErrFolderMove, "remove moved source "+src, err)
		}
	}
	return false, nil
}

// mergeDir copies the tree at src into dest. A file that would replace a
// different existing file is written under an enumerated name instead.
func mergeDir(src, dest string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}

		if info, err := os.Stat(target); err == nil && !info.IsDir() {
			same, err := sameContent(path, target)
			if err != nil {
				return err
			}
			if same {
				return nil
			}
			enumerated := Enumerate(target)
			logging.Warn("file name collision while merging, keeping both", map[string]interface{}{
				"existing": target,
				"incoming": path,
				"saved_as": enumerated,
			})
			target = enumerated
		}
		return copyFile(path, target)
	})
}

// Enumerate returns the first "name (n).ext" sibling of path that does not exist.
func Enumerate(path string) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, n, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func sameContent(a, b string) (bool, error) {
	fa, err := os.Open(a)
	if err != nil {
		return false, err
	}
	defer fa.Close()
	fb, err := os.Open(b)
	if err != nil {
		return false, err
	}
	defer fb.Close()

	ia, err := fa.Stat()
	if err != nil {
		return false, err
	}
	ib, err := fb.Stat()
	if err != nil {
		return false, err
	}
	if ia.Size() != ib.Size() {
		return false, nil
	}

	bufA := make([]byte, 32*1024)
	bufB := make([]byte, 32*1024)
	for {
		na, errA := io.ReadFull(fa, bufA)
		nb, errB := io.ReadFull(fb, bufB)
		if !bytes.Equal(bufA[:na], bufB[:nb]) {
			return false, nil
		}
		if errA == io.EOF || errA == io.ErrUnexpectedEOF {
			return errB == io.EOF || errB == io.ErrUnexpectedEOF, nil
		}
		if errA != nil {
			return false, errA
		}
		if errB != nil {
			return false, errB
		}
	}
}

// PrepareTextPath returns where the text file for an export in folder should
// be written. Social exports first move the folder contents into a
// "{stamp}-{folder}" sub-folder so exports sharing an identifier and date
// never overwrite each other once merged.
func PrepareTextPath(folder, stamp, fileName string, messaging bool) (string, error) {
	if messaging {
		return filepath.Join(folder, fileName), nil
	}

	base := filepath.Base(folder)
	subName := stamp + "-" + base
	sub := filepath.Join(folder, subName)
	if err := os.MkdirAll(sub, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", sub, err)
	}

	entries, err := os.ReadDir(folder)
	if err != nil {
		return "", fmt.Errorf("failed to list %s: %w", folder, err)
	}
	for _, e := range entries {
		if e.IsDir() && strings.HasSuffix(e.Name(), "-"+base) {
			continue
		}
		from := filepath.Join(folder, e.Name())
		to := filepath.Join(sub, e.Name())
		if err := os.Rename(from, to); err != nil {
			return "", fmt.Errorf("failed to move %s into %s: %w", from, sub, err)
		}
	}
	return filepath.Join(sub, fileName), nil
}
