package verify

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kimhsiao/recordkit/internal/config"
	"github.com/kimhsiao/recordkit/internal/db"
	apperrors "github.com/kimhsiao/recordkit/internal/errors"
	"github.com/kimhsiao/recordkit/internal/hashing"
	"github.com/kimhsiao/recordkit/internal/logging"
	"github.com/kimhsiao/recordkit/internal/metrics"
	"github.com/kimhsiao/recordkit/internal/models"
	"github.com/kimhsiao/recordkit/internal/uuid"
)

// ProgressFunc is called after each file, in completion order.
type ProgressFunc func(done, total int, f models.FileReport)

// Verifier hashes candidate files with a bounded worker pool.
type Verifier struct {
	workers    int
	chunkSize  int
	reportName string
	writer     ReportWriter
	store      db.RunStore
	progress   ProgressFunc
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithStore records runs in the verification history.
func WithStore(s db.RunStore) Option {
	return func(v *Verifier) { v.store = s }
}

// WithReportWriter replaces the PDF writer.
func WithReportWriter(w ReportWriter) Option {
	return func(v *Verifier) { v.writer = w }
}

// WithProgress registers a per-file callback.
func WithProgress(fn ProgressFunc) Option {
	return func(v *Verifier) { v.progress = fn }
}

// New builds a Verifier from cfg.
func New(cfg config.HashingConfig, opts ...Option) *Verifier {
	v := &Verifier{
		workers:    cfg.Workers,
		chunkSize:  cfg.ChunkSize,
		reportName: cfg.ReportName,
		writer:     PDFWriter{LicenseKey: cfg.PDFLicenseKey},
	}
	if v.workers <= 0 {
		v.workers = 4
	}
	if v.chunkSize <= 0 {
		v.chunkSize = hashing.DefaultChunkSize
	}
	if v.reportName == "" {
		v.reportName = hashing.ReportFileName
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// collector accumulates results from the workers.
type collector struct {
	mu       sync.Mutex
	report   *models.VerificationReport
	total    int
	store    db.RunStore
	progress ProgressFunc
}

func (c *collector) add(f models.FileReport) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.report.Files = append(c.report.Files, f)
	metrics.FilesHashed.WithLabelValues(string(f.Classification)).Inc()
	if c.store != nil {
		if err := c.store.AddFileResult(c.report.RunID, f); err != nil {
			logging.Warn("failed to record file result", map[string]interface{}{"file": f.Path, "error": err.Error()})
		}
	}
	if c.progress != nil {
		c.progress(len(c.report.Files), c.total, f)
	}
}

// Run verifies every candidate under root against the root manifest and
// writes the report into root. A report-writing failure is returned
// together with the completed report.
func (v *Verifier) Run(ctx context.Context, root string) (*models.VerificationReport, error) {
	found, err := Discover(root)
	if err != nil {
		return nil, err
	}
	if found.ManifestPath == "" {
		return nil, apperrors.New(apperrors.ErrManifestMissing, "o caminho do arquivo de hashes.txt ou .csv não existe")
	}

	manifest, err := hashing.LoadManifest(found.ManifestPath)
	if err != nil {
		return nil, err
	}

	folder, _ := filepath.Abs(root)
	report := &models.VerificationReport{
		RunID:        uuid.NewRunID(),
		Folder:       folder,
		ManifestPath: manifest.Path,
		Algorithm:    manifest.Algorithm,
		HashesCount:  len(manifest.Entries),
		StartedAt:    time.Now().UTC(),
	}
	v.startRun(report)

	logging.Info("verification started", map[string]interface{}{
		"folder":     folder,
		"manifest":   manifest.Path,
		"candidates": len(found.Candidates),
		"hashes":     report.HashesCount,
	})

	col := &collector{report: report, total: report.HashesCount, store: v.store, progress: v.progress}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.workers)
	for _, path := range found.Candidates {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			col.add(v.checkFile(path, manifest))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	return report, v.finish(report, filepath.Join(folder, v.reportName))
}

// Check compares one file with an expected hash and writes a report next
// to it.
func (v *Verifier) Check(ctx context.Context, file, expected string, alg models.HashAlgorithm) (*models.VerificationReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalid, "invalid file path", err)
	}
	if info, err := os.Stat(abs); err != nil || info.IsDir() {
		return nil, apperrors.New(apperrors.ErrNotFound, "file not found: "+file)
	}

	report := &models.VerificationReport{
		RunID:       uuid.NewRunID(),
		Folder:      filepath.Dir(abs),
		Algorithm:   alg,
		HashesCount: 1,
		StartedAt:   time.Now().UTC(),
	}
	v.startRun(report)

	f := models.FileReport{Path: abs, Name: filepath.Base(abs), ExpectedHash: expected}
	computed, err := hashing.HashFile(abs, alg, v.chunkSize)
	f.ComputedHash = computed
	switch {
	case expected == "":
		f.Classification = models.HashNotFound
		f.ExpectedHash = models.MissingHashMarker
	case err != nil:
		f.Classification = models.Collision
		f.Error = err.Error()
	case computed == expected:
		f.Classification = models.Verified
	default:
		f.Classification = models.Collision
	}

	col := &collector{report: report, total: 1, store: v.store, progress: v.progress}
	col.add(f)

	return report, v.finish(report, filepath.Join(report.Folder, v.reportName))
}

func (v *Verifier) checkFile(path string, m *models.HashManifest) models.FileReport {
	name := filepath.Base(path)
	f := models.FileReport{Path: path, Name: name}

	expected, ok := m.Lookup(hashing.ManifestKey(name))
	computed, err := hashing.HashFile(path, m.Algorithm, v.chunkSize)
	if err != nil {
		logging.Warn("failed to hash file", map[string]interface{}{"file": path, "error": err.Error()})
		f.Error = err.Error()
	}
	f.ComputedHash = computed

	switch {
	case !ok:
		f.Classification = models.HashNotFound
		f.ExpectedHash = models.MissingHashMarker
	case err == nil && computed == expected:
		f.Classification = models.Verified
		f.ExpectedHash = expected
	default:
		f.Classification = models.Collision
		f.ExpectedHash = expected
	}
	return f
}

func (v *Verifier) startRun(r *models.VerificationReport) {
	if v.store == nil {
		return
	}
	if err := v.store.CreateRun(r); err != nil {
		logging.Warn("failed to record verification run", map[string]interface{}{"run_id": r.RunID, "error": err.Error()})
	}
}

func (v *Verifier) finish(r *models.VerificationReport, reportPath string) error {
	r.FinishedAt = time.Now().UTC()

	if v.store != nil {
		if err := v.store.FinishRun(r, RenderMarkdown(r)); err != nil {
			logging.Warn("failed to finish verification run", map[string]interface{}{"run_id": r.RunID, "error": err.Error()})
		}
	}

	logging.Info("verification finished", map[string]interface{}{
		"run_id":     r.RunID,
		"verified":   r.VerifiedFiles(),
		"collisions": r.Collisions(),
		"hashes":     r.HashesCount,
	})

	if v.writer == nil {
		return nil
	}
	if err := v.writer.WriteReport(reportPath, r); err != nil {
		if apperrors.CodeOf(err) == apperrors.ErrReportFailed {
			return err
		}
		return apperrors.Wrap(apperrors.ErrReportFailed, "failed to write report", err)
	}
	return nil
}
