package services

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	apperrors "github.com/kimhsiao/recordkit/internal/errors"
)

// lockFolder takes an exclusive, non-blocking lock for root. The lock file
// lives in the temp dir so the processed tree stays untouched.
func lockFolder(root string) (*flock.Flock, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalid, "invalid folder", err)
	}
	sum := sha256.Sum256([]byte(abs))
	path := filepath.Join(os.TempDir(), "recordkit-"+hex.EncodeToString(sum[:8])+".lock")

	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrFolderBusy, "failed to lock "+abs, err)
	}
	if !locked {
		return nil, apperrors.New(apperrors.ErrFolderBusy, "folder is being processed by another run: "+abs)
	}
	return lock, nil
}
