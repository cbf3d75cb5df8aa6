package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	apperrors "github.com/kimhsiao/recordkit/internal/errors"
)

// WaitForPath blocks until path exists, ctx is done or timeout elapses.
func WaitForPath(ctx context.Context, path string, timeout time.Duration) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	// the path may have appeared between the first stat and Add
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return apperrors.New(apperrors.ErrExtractionTimeout, fmt.Sprintf("%s did not appear within %s", path, timeout))
		case event, ok := <-watcher.Events:
			if !ok {
				return apperrors.New(apperrors.ErrExtractionTimeout, "watcher closed while waiting for "+path)
			}
			if filepath.Clean(event.Name) == filepath.Clean(path) && event.Has(fsnotify.Create) {
				return nil
			}
		case err, ok := <-watcher.Errors:
			if ok && err != nil {
				return fmt.Errorf("watch %s: %w", path, err)
			}
		}
	}
}
