package db

import "github.com/kimhsiao/recordkit/internal/models"

// GeoCache persists geolocation lookups between runs.
type GeoCache interface {
	GetGeoInfo(ip string) (models.GeoInfo, bool, error)
	PutGeoInfo(info models.GeoInfo) error
}

// RunStore records verification runs.
type RunStore interface {
	CreateRun(report *models.VerificationReport) error
	AddFileResult(runID string, f models.FileReport) error
	FinishRun(report *models.VerificationReport, markdown string) error
}

// RunReader exposes stored verification runs to the desktop API.
type RunReader interface {
	ListRuns(limit int) ([]models.RunSummary, error)
	GetRunReport(id string) (string, error)
	GetRunFiles(id string) ([]models.FileReport, error)
}

var (
	_ GeoCache  = (*Repository)(nil)
	_ RunStore  = (*Repository)(nil)
	_ RunReader = (*Repository)(nil)
)
