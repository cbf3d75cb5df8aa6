// Package app wires configuration, storage and services for the recordkit
// binaries.
package app

import (
	"errors"

	"github.com/kimhsiao/recordkit/internal/config"
	"github.com/kimhsiao/recordkit/internal/db"
	"github.com/kimhsiao/recordkit/internal/geoip"
	"github.com/kimhsiao/recordkit/internal/logging"
	"github.com/kimhsiao/recordkit/internal/metrics"
	"github.com/kimhsiao/recordkit/internal/services"
	"github.com/kimhsiao/recordkit/internal/verify"
)

// App holds the long-lived pieces shared by one process.
type App struct {
	Config     *config.Config
	Geo        *geoip.Client
	Normalizer *services.NormalizeService
	AccessLogs *services.AccessLogService

	// ReportWriter replaces the PDF report writer when set.
	ReportWriter verify.ReportWriter

	database *db.DB
	repo     *db.Repository
}

// New builds an App from cfg. The sqlite store is opened only when a data
// directory is configured.
func New(cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	var geoOpts []geoip.Option
	if cfg.Storage.DataDir != "" {
		database, err := db.Open(cfg.Storage.DataDir)
		if err != nil {
			return nil, err
		}
		a.database = database
		a.repo = db.NewRepository(database.DB)
		geoOpts = append(geoOpts, geoip.WithStore(a.repo))
		logging.Debug("history store opened", map[string]interface{}{"data_dir": cfg.Storage.DataDir})
	}

	geo, err := geoip.New(cfg.Geo, geoOpts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Geo = geo

	a.Normalizer = services.NewNormalizeService(cfg.Normalize)
	a.AccessLogs = services.NewAccessLogService(a.Normalizer, geo, cfg.Location())
	return a, nil
}

// Verifier returns a verifier recording into the history store when one
// is open.
func (a *App) Verifier(opts ...verify.Option) *verify.Verifier {
	var base []verify.Option
	if a.repo != nil {
		base = append(base, verify.WithStore(a.repo))
	}
	if a.ReportWriter != nil {
		base = append(base, verify.WithReportWriter(a.ReportWriter))
	}
	return verify.New(a.Config.Hashing, append(base, opts...)...)
}

// Runs returns the verification history, or nil when persistence is off.
func (a *App) Runs() db.RunReader {
	if a.repo == nil {
		return nil
	}
	return a.repo
}

// Close flushes the metrics textfile and closes the store.
func (a *App) Close() error {
	errs := []error{metrics.WriteTextfile(a.Config.Metrics.TextfilePath)}
	if a.repo != nil {
		errs = append(errs, a.repo.Close())
	}
	if a.database != nil {
		errs = append(errs, a.database.Close())
	}
	return errors.Join(errs...)
}
