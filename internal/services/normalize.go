package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kimhsiao/recordkit/internal/archive"
	"github.com/kimhsiao/recordkit/internal/config"
	apperrors "github.com/kimhsiao/recordkit/internal/errors"
	"github.com/kimhsiao/recordkit/internal/logging"
	"github.com/kimhsiao/recordkit/internal/metrics"
	"github.com/kimhsiao/recordkit/internal/models"
	"github.com/kimhsiao/recordkit/internal/parser"
	"github.com/kimhsiao/recordkit/internal/reorganize"
)

// NormalizeSummary counts what a normalization pass did.
type NormalizeSummary struct {
	Root            string   `json:"root"`
	Extracted       int      `json:"extracted"`
	Converted       int      `json:"converted"`
	Skipped         int      `json:"skipped"`
	Moved           int      `json:"moved"`
	MoveFailures    int      `json:"move_failures"`
	ArchivesDeleted int      `json:"archives_deleted"`
	// TextFiles are the written text records at their final location.
	TextFiles       []string `json:"text_files"`
}

// NormalizeService converts HTML record exports into text files and
// renames their folders after the account identifier.
type NormalizeService struct {
	extractTimeout time.Duration

	onStarted   func(root string)
	onCompleted func(root string, summary *NormalizeSummary)
	onFailed    func(root string, err error)
}

// NewNormalizeService creates a NormalizeService.
func NewNormalizeService(cfg config.NormalizeConfig) *NormalizeService {
	timeout := cfg.ExtractTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &NormalizeService{extractTimeout: timeout}
}

// SetEventCallbacks registers progress notifications.
func (s *NormalizeService) SetEventCallbacks(
	started func(root string),
	completed func(root string, summary *NormalizeSummary),
	failed func(root string, err error),
) {
	s.onStarted = started
	s.onCompleted = completed
	s.onFailed = failed
}

// NormalizeFolder runs a full pass over root: root archives are
// extracted, each export folder's HTML files become text files, billing
// sub-folders get a second pass, folders are renamed, and leftover zips
// are deleted.
func (s *NormalizeService) NormalizeFolder(ctx context.Context, root string) (*NormalizeSummary, error) {
	if s.onStarted != nil {
		s.onStarted(root)
	}
	summary, err := s.normalize(ctx, root)
	if err != nil {
		if s.onFailed != nil {
			s.onFailed(root, err)
		}
		return summary, err
	}
	if s.onCompleted != nil {
		s.onCompleted(root, summary)
	}
	return summary, nil
}

func (s *NormalizeService) normalize(ctx context.Context, root string) (*NormalizeSummary, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalid, "invalid folder", err)
	}
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		return nil, apperrors.New(apperrors.ErrNotFound, "folder not found: "+root)
	}

	lock, err := lockFolder(abs)
	if err != nil {
		return nil, err
	}
	defer lock.Unlock()

	summary := &NormalizeSummary{Root: abs}
	plan := reorganize.NewPlan()

	extracted, err := archive.ExtractAll(ctx, abs, s.extractTimeout)
	summary.Extracted = len(extracted)
	if err != nil {
		return summary, err
	}

	if err := s.processLevel(ctx, abs, 0, plan, summary); err != nil {
		return summary, err
	}

	for _, out := range plan.Apply() {
		if out.Err != nil {
			summary.MoveFailures++
			metrics.FolderMoves.WithLabelValues("failed").Inc()
			continue
		}
		summary.Moved++
		metrics.FolderMoves.WithLabelValues("ok").Inc()
		relocate(summary.TextFiles, out.Entry.Source, out.Destination)
	}

	deleted, err := archive.DeleteArchives(abs)
	summary.ArchivesDeleted = deleted
	if err != nil {
		logging.Warn("archive cleanup failed", map[string]interface{}{"root": abs, "error": err.Error()})
	}

	logging.Info("normalization finished", map[string]interface{}{
		"root":      abs,
		"converted": summary.Converted,
		"skipped":   summary.Skipped,
		"moved":     summary.Moved,
	})
	return summary, nil
}

// processLevel handles the export folders directly under dir. Level 0 is
// the root; level 1 is a billing folder inside an export.
func (s *NormalizeService) processLevel(ctx context.Context, dir string, level int, plan *reorganize.Plan, summary *NormalizeSummary) error {
	items, err := os.ReadDir(dir)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrNotFound, "failed to list "+dir, err)
	}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !item.IsDir() {
			continue
		}
		folder := filepath.Join(dir, item.Name())
		s.processExport(folder, plan, summary)

		billing := filepath.Join(folder, parser.BillingFolder)
		if level == 0 && isDir(billing) {
			if _, err := archive.ExtractAll(ctx, billing, s.extractTimeout); err != nil {
				return err
			}
			if err := s.processLevel(ctx, billing, 1, plan, summary); err != nil {
				return err
			}
		}
	}
	return nil
}

// processExport converts every HTML file in folder. All files are read
// before any is written, since social exports relocate the folder contents.
func (s *NormalizeService) processExport(folder string, plan *reorganize.Plan, summary *NormalizeSummary) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		logging.Error("failed to list export folder", err, map[string]interface{}{"folder": folder})
		return
	}

	var records []*models.ExportedRecord
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".html") || strings.Contains(name, "preservation") {
			continue
		}
		path := filepath.Join(folder, name)
		rec, err := parser.TokenizeFile(path)
		if err != nil {
			summary.Skipped++
			metrics.HTMLFiles.WithLabelValues("skipped").Inc()
			logging.Error("skipping record", err, map[string]interface{}{"file": path})
			continue
		}
		records = append(records, rec)
	}

	for _, rec := range records {
		text := parser.BuildTextRecord(rec, folder)
		target, err := reorganize.PrepareTextPath(folder, text.Stamp, text.FileName, text.IsMessaging)
		if err == nil {
			err = os.WriteFile(target, []byte(text.Body), 0644)
		}
		if err != nil {
			summary.Skipped++
			metrics.HTMLFiles.WithLabelValues("failed").Inc()
			logging.Error("failed to save text record", err, map[string]interface{}{"file": rec.SourcePath})
			continue
		}

		summary.Converted++
		summary.TextFiles = append(summary.TextFiles, target)
		metrics.HTMLFiles.WithLabelValues("converted").Inc()
		logging.Info("text record saved", map[string]interface{}{"path": target})

		if entry, ok := reorganize.EntryFor(folder, text); ok {
			plan.Add(entry)
		}
	}
}

// relocate rewrites paths under from to live under to.
func relocate(paths []string, from, to string) {
	prefix := from + string(os.PathSeparator)
	for i, p := range paths {
		if strings.HasPrefix(p, prefix) {
			paths[i] = filepath.Join(to, strings.TrimPrefix(p, prefix))
		}
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
