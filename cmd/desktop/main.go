// Package main provides the local HTTP server used by the desktop shell.
// The shell talks to it over REST and a websocket on the loopback interface.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kimhsiao/recordkit/cmd/desktop/handlers"
	"github.com/kimhsiao/recordkit/internal/app"
	"github.com/kimhsiao/recordkit/internal/config"
	apperrors "github.com/kimhsiao/recordkit/internal/errors"
	"github.com/kimhsiao/recordkit/internal/logging"
)

func main() {
	configPath := flag.String("config", os.Getenv(config.EnvPrefix+"CONFIG"), "TOML or YAML configuration file")
	flag.Parse()

	logging.Init(os.Stderr, logging.LevelInfo)
	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Error("failed to load config", err, map[string]interface{}{"path": *configPath})
		os.Exit(1)
	}
	logging.SetLevel(logging.ParseLevel(cfg.Logging.Level))

	a, err := app.New(cfg)
	if err != nil {
		logging.Error("failed to start", err)
		os.Exit(apperrors.ExitCode(err))
	}
	defer a.Close()

	hub := NewWSHub()
	srv := &http.Server{
		Addr:              cfg.Desktop.Addr,
		Handler:           newRouter(a, hub),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logging.Info("desktop server starting", map[string]interface{}{"addr": cfg.Desktop.Addr})
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Error("desktop server stopped", err)
		os.Exit(1)
	}
}

// newRouter registers every route. hub receives the service notifications.
func newRouter(a *app.App, hub *WSHub) http.Handler {
	hub.WatchNormalize(a.Normalizer)
	hub.WatchAccessLogs(a.AccessLogs)

	jobs := handlers.NewJobHandler(a, hub)
	runs := handlers.NewRunHandler(a.Runs())

	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","service":"recordkit-desktop"}`))
	})

	mux.HandleFunc("/api/verify", jobs.Verify)
	mux.HandleFunc("/api/check", jobs.Check)
	mux.HandleFunc("/api/normalize", jobs.Normalize)
	mux.HandleFunc("/api/accesslogs", jobs.AccessLogs)
	mux.HandleFunc("/api/template", jobs.Template)
	mux.HandleFunc("/api/transform", jobs.Transform)
	mux.HandleFunc("/api/unzip", jobs.Unzip)

	mux.HandleFunc("GET /api/runs", runs.ListRuns)
	mux.HandleFunc("GET /api/runs/{id}/files", runs.GetRunFiles)
	mux.HandleFunc("GET /api/runs/{id}/report", runs.GetRunReport)

	mux.HandleFunc("/ws", HandleWebSocket(hub))
	return mux
}
