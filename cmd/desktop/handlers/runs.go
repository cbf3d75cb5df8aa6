package handlers

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/kimhsiao/recordkit/internal/db"
	apperrors "github.com/kimhsiao/recordkit/internal/errors"
	"github.com/kimhsiao/recordkit/internal/uuid"
)

const reportPage = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Relatório de hashes</title></head>
<body>
`

// RunHandler serves the verification history.
type RunHandler struct {
	runs db.RunReader
	md   goldmark.Markdown
}

// NewRunHandler creates a new RunHandler. runs is nil when persistence is
// disabled.
func NewRunHandler(runs db.RunReader) *RunHandler {
	return &RunHandler{
		runs: runs,
		md:   goldmark.New(goldmark.WithExtensions(extension.Table)),
	}
}

func (h *RunHandler) available(w http.ResponseWriter) bool {
	if h.runs == nil {
		writeJSON(w, http.StatusServiceUnavailable, Response{
			Success: false,
			Message: "verification history is disabled; set storage.data_dir",
		})
		return false
	}
	return true
}

// ListRuns handles GET /api/runs
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 500 {
		limit = 50
	}

	runs, err := h.runs.ListRuns(limit)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"total": len(runs),
	})
}

// GetRunFiles handles GET /api/runs/{id}/files
func (h *RunHandler) GetRunFiles(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	id, err := uuid.ParseRunID(r.PathValue("id"))
	if err != nil {
		writeError(w, err, nil)
		return
	}

	files, err := h.runs.GetRunFiles(id)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"run_id": id, "files": files})
}

// GetRunReport handles GET /api/runs/{id}/report. The stored Markdown is
// rendered to HTML unless ?format=markdown is given.
func (h *RunHandler) GetRunReport(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	id, err := uuid.ParseRunID(r.PathValue("id"))
	if err != nil {
		writeError(w, err, nil)
		return
	}

	markdown, err := h.runs.GetRunReport(id)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	if markdown == "" {
		writeError(w, apperrors.New(apperrors.ErrNotFound, "run "+id+" has not finished"), nil)
		return
	}

	if r.URL.Query().Get("format") == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Write([]byte(markdown))
		return
	}

	var buf bytes.Buffer
	buf.WriteString(reportPage)
	if err := h.md.Convert([]byte(markdown), &buf); err != nil {
		writeError(w, apperrors.Wrap(apperrors.ErrReportFailed, "render report", err), nil)
		return
	}
	buf.WriteString("</body></html>\n")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}
