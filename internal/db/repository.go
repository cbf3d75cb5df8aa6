package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/kimhsiao/recordkit/internal/errors"
	"github.com/kimhsiao/recordkit/internal/models"
)

// Repository provides persistence for the geolocation cache and the
// verification history.
type Repository struct {
	db *sql.DB

	// prepared statements keyed by query text
	stmtCache sync.Map
}

// NewRepository creates a new Repository instance.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// PrepareStmt gets or creates a prepared statement from cache.
func (r *Repository) PrepareStmt(query string) (*sql.Stmt, error) {
	if stmt, ok := r.stmtCache.Load(query); ok {
		return stmt.(*sql.Stmt), nil
	}

	stmt, err := r.db.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}

	actual, loaded := r.stmtCache.LoadOrStore(query, stmt)
	if loaded {
		stmt.Close()
		return actual.(*sql.Stmt), nil
	}
	return stmt, nil
}

// Close closes all cached prepared statements.
func (r *Repository) Close() error {
	var firstErr error
	r.stmtCache.Range(func(key, value interface{}) bool {
		if err := value.(*sql.Stmt).Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		return true
	})
	return firstErr
}

// =====================================================
// Geolocation cache
// =====================================================

// GetGeoInfo returns the cached record for ip.
func (r *Repository) GetGeoInfo(ip string) (models.GeoInfo, bool, error) {
	stmt, err := r.PrepareStmt("SELECT payload FROM geo_cache WHERE ip = ?")
	if err != nil {
		return models.GeoInfo{}, false, err
	}

	var payload string
	if err := stmt.QueryRow(ip).Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.GeoInfo{}, false, nil
		}
		return models.GeoInfo{}, false, apperrors.Wrap(apperrors.ErrDatabase, "read geo cache", err)
	}

	var info models.GeoInfo
	if err := json.Unmarshal([]byte(payload), &info); err != nil {
		return models.GeoInfo{}, false, apperrors.Wrap(apperrors.ErrDatabase, "decode geo cache entry", err)
	}
	return info, true, nil
}

// PutGeoInfo stores or replaces the record for info.Query.
func (r *Repository) PutGeoInfo(info models.GeoInfo) error {
	if info.Query == "" {
		return apperrors.New(apperrors.ErrInvalid, "geo record without query")
	}
	payload, err := json.Marshal(info)
	if err != nil {
		return err
	}

	stmt, err := r.PrepareStmt(`INSERT INTO geo_cache (ip, payload, fetched_at) VALUES (?, ?, ?)
		ON CONFLICT(ip) DO UPDATE SET payload = excluded.payload, fetched_at = excluded.fetched_at`)
	if err != nil {
		return err
	}
	if _, err := stmt.Exec(info.Query, string(payload), time.Now().Unix()); err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "write geo cache", err)
	}
	return nil
}

// =====================================================
// Verification history
// =====================================================

// CreateRun records the start of a verification run.
func (r *Repository) CreateRun(report *models.VerificationReport) error {
	_, err := r.db.Exec(`INSERT INTO verification_runs (id, folder, manifest_path, algorithm, hashes_count, started_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		report.RunID, report.Folder, report.ManifestPath, string(report.Algorithm), report.HashesCount, report.StartedAt.Unix())
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "create verification run", err)
	}
	return nil
}

// AddFileResult stores the outcome of one file.
func (r *Repository) AddFileResult(runID string, f models.FileReport) error {
	stmt, err := r.PrepareStmt(`INSERT OR REPLACE INTO verification_files
		(run_id, path, name, classification, expected_hash, computed_hash) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	if _, err := stmt.Exec(runID, f.Path, f.Name, string(f.Classification), f.ExpectedHash, f.ComputedHash); err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "store file result", err)
	}
	return nil
}

// FinishRun stores the final counts and the rendered Markdown report.
func (r *Repository) FinishRun(report *models.VerificationReport, markdown string) error {
	res, err := r.db.Exec(`UPDATE verification_runs
		SET verified_files = ?, collisions = ?, report = ?, finished_at = ?
		WHERE id = ?`,
		report.VerifiedFiles(), report.Collisions(), markdown, report.FinishedAt.Unix(), report.RunID)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "finish verification run", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.New(apperrors.ErrNotFound, "verification run "+report.RunID)
	}
	return nil
}

// ListRuns returns the latest runs, newest first.
func (r *Repository) ListRuns(limit int) ([]models.RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(`SELECT id, folder, manifest_path, algorithm, hashes_count, verified_files, collisions, started_at, finished_at
		FROM verification_runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "list verification runs", err)
	}
	defer rows.Close()

	var runs []models.RunSummary
	for rows.Next() {
		var s models.RunSummary
		var algorithm string
		var started int64
		var finished sql.NullInt64
		if err := rows.Scan(&s.ID, &s.Folder, &s.ManifestPath, &algorithm, &s.HashesCount,
			&s.VerifiedFiles, &s.Collisions, &started, &finished); err != nil {
			return nil, err
		}
		s.Algorithm = models.HashAlgorithm(algorithm)
		s.StartedAt = time.Unix(started, 0).UTC()
		if finished.Valid {
			t := time.Unix(finished.Int64, 0).UTC()
			s.FinishedAt = &t
		}
		runs = append(runs, s)
	}
	return runs, rows.Err()
}

// GetRunReport returns the Markdown report stored for a run.
func (r *Repository) GetRunReport(id string) (string, error) {
	var report string
	err := r.db.QueryRow("SELECT report FROM verification_runs WHERE id = ?", id).Scan(&report)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperrors.New(apperrors.ErrNotFound, "verification run "+id)
	}
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrDatabase, "read verification report", err)
	}
	return report, nil
}

// GetRunFiles returns the stored file outcomes of a run, ordered by path.
func (r *Repository) GetRunFiles(id string) ([]models.FileReport, error) {
	rows, err := r.db.Query(`SELECT path, name, classification, expected_hash, computed_hash
		FROM verification_files WHERE run_id = ? ORDER BY path`, id)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "list run files", err)
	}
	defer rows.Close()

	var files []models.FileReport
	for rows.Next() {
		var f models.FileReport
		var class string
		if err := rows.Scan(&f.Path, &f.Name, &class, &f.ExpectedHash, &f.ComputedHash); err != nil {
			return nil, err
		}
		f.Classification = models.Classification(class)
		files = append(files, f)
	}
	return files, rows.Err()
}
