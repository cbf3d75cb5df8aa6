// Package metrics keeps local pipeline counters. Nothing is transmitted;
// counters are only written to a Prometheus textfile when configured.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds every recordkit collector.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	HTMLFiles = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "recordkit_html_files_total",
		Help: "HTML exports processed, by outcome.",
	}, []string{"outcome"})

	FolderMoves = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "recordkit_folder_moves_total",
		Help: "Extraction folders moved to their destination, by outcome.",
	}, []string{"outcome"})

	GeoBatches = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "recordkit_geo_batches_total",
		Help: "Geolocation batch requests, by outcome.",
	}, []string{"outcome"})

	GeoCacheHits = factory.NewCounter(prometheus.CounterOpts{
		Name: "recordkit_geo_cache_hits_total",
		Help: "IPs answered from the local geolocation cache.",
	})

	FilesHashed = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "recordkit_files_hashed_total",
		Help: "Files hashed during verification, by classification.",
	}, []string{"classification"})

	SheetsWritten = factory.NewCounter(prometheus.CounterOpts{
		Name: "recordkit_sheets_written_total",
		Help: "Access-log spreadsheets written.",
	})
)

// WriteTextfile dumps the current counters in the node-exporter textfile format.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
