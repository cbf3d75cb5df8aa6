package services

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/kimhsiao/recordkit/internal/accesslog"
	apperrors "github.com/kimhsiao/recordkit/internal/errors"
	"github.com/kimhsiao/recordkit/internal/geoip"
	"github.com/kimhsiao/recordkit/internal/logging"
	"github.com/kimhsiao/recordkit/internal/models"
	"github.com/kimhsiao/recordkit/internal/providers"
	"github.com/kimhsiao/recordkit/internal/sheet"
)

// Enricher resolves IP addresses to geolocation records. Partial results
// are returned alongside an error.
type Enricher interface {
	Lookup(ctx context.Context, ips []string) (map[string]models.GeoInfo, error)
}

// AccessLogSummary reports an access-log run.
type AccessLogSummary struct {
	Root      string            `json:"root"`
	Normalize *NormalizeSummary `json:"normalize,omitempty"`
	Files     int               `json:"files"`
	Sheets    []string          `json:"sheets"`
	Failures  int               `json:"failures"`
}

// AccessLogService turns normalized text records into enriched spreadsheets.
type AccessLogService struct {
	normalizer *NormalizeService
	geo        Enricher
	loc        *time.Location

	onStarted   func(root string)
	onFile      func(path string, sheetPath string, err error)
	onCompleted func(root string, summary *AccessLogSummary)
	onFailed    func(root string, err error)
}

// NewAccessLogService creates an AccessLogService. Dates are rendered in loc.
func NewAccessLogService(normalizer *NormalizeService, geo Enricher, loc *time.Location) *AccessLogService {
	if loc == nil {
		loc = time.Local
	}
	return &AccessLogService{normalizer: normalizer, geo: geo, loc: loc}
}

// SetEventCallbacks registers progress notifications.
func (s *AccessLogService) SetEventCallbacks(
	started func(root string),
	file func(path string, sheetPath string, err error),
	completed func(root string, summary *AccessLogSummary),
	failed func(root string, err error),
) {
	s.onStarted = started
	s.onFile = file
	s.onCompleted = completed
	s.onFailed = failed
}

// ProcessFolder normalizes root and writes one spreadsheet per text
// record found afterwards. Records are processed sequentially; a failing
// record is logged and does not stop the others.
func (s *AccessLogService) ProcessFolder(ctx context.Context, root string) (*AccessLogSummary, error) {
	if s.onStarted != nil {
		s.onStarted(root)
	}
	summary, err := s.processFolder(ctx, root)
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

func (s *AccessLogService) processFolder(ctx context.Context, root string) (*AccessLogSummary, error) {
	summary := &AccessLogSummary{Root: root}

	normalized, err := s.normalizer.NormalizeFolder(ctx, root)
	summary.Normalize = normalized
	if err != nil {
		return summary, err
	}
	summary.Root = normalized.Root

	files, err := accesslog.FindRecordFiles(normalized.Root)
	if err != nil {
		return summary, err
	}
	summary.Files = len(files)

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		sheetPath, err := s.ProcessFile(ctx, path)
		if s.onFile != nil {
			s.onFile(path, sheetPath, err)
		}
		if err != nil {
			summary.Failures++
			logging.Error("access log file failed", err, map[string]interface{}{"file": path})
			continue
		}
		if sheetPath != "" {
			summary.Sheets = append(summary.Sheets, sheetPath)
		}
	}
	return summary, nil
}

// ProcessFile parses one text record, enriches its IPs and writes the
// spreadsheet next to it. It returns the spreadsheet path, empty when the
// record produced no rows.
func (s *AccessLogService) ProcessFile(ctx context.Context, path string) (string, error) {
	logs, err := accesslog.ParseFile(path)
	if err != nil {
		return "", err
	}
	return s.writeSheet(ctx, filepath.Dir(path), logs, sheet.Options{})
}

func (s *AccessLogService) writeSheet(ctx context.Context, dir string, logs *models.UserAccessLogs, opts sheet.Options) (string, error) {
	geo, err := s.geo.Lookup(ctx, logs.UniqueIPs())
	if err != nil {
		logging.Warn("geolocation incomplete, writing partial sheet", map[string]interface{}{
			"service":    logs.Service,
			"identifier": logs.Identifier,
			"resolved":   len(geo),
			"error":      err.Error(),
		})
		if _, werr := geoip.WriteFailureReport(dir, logs.Service, logs.Identifier, err); werr != nil {
			logging.Error("failed to write geolocation error report", werr, nil)
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}

	rows := sheet.BuildRows(logs, geo, s.loc)
	return sheet.Write(dir, logs, rows, opts)
}

// TransformSummary reports a provider transform run.
type TransformSummary struct {
	Provider string   `json:"provider"`
	Message  string   `json:"message"`
	Sheets   []string `json:"sheets"`
}

// Transform maps a provider export to spreadsheets. Every account in
// the export gets its own enriched sheet.
func (s *AccessLogService) Transform(ctx context.Context, t providers.Transformer, path string) (*TransformSummary, error) {
	res, err := t.Transform(path)
	if err != nil {
		return nil, err
	}
	if err := ensureDir(res.OutDir); err != nil {
		return nil, err
	}

	summary := &TransformSummary{Provider: t.Name(), Message: res.Message}
	for _, user := range res.Users {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		sheetPath, err := s.writeSheet(ctx, res.OutDir, user, res.Sheet)
		if err != nil {
			return summary, err
		}
		if sheetPath != "" {
			summary.Sheets = append(summary.Sheets, sheetPath)
		}
	}
	logging.Info("provider export processed", map[string]interface{}{
		"provider": t.Name(),
		"accounts": len(res.Users),
		"sheets":   len(summary.Sheets),
	})
	return summary, nil
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return apperrors.Wrap(apperrors.ErrInternal, "failed to create "+dir, err)
	}
	return nil
}
