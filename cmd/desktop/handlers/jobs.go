package handlers

import (
	"fmt"
	"net/http"
	"os"

	"github.com/kimhsiao/recordkit/internal/app"
	"github.com/kimhsiao/recordkit/internal/archive"
	apperrors "github.com/kimhsiao/recordkit/internal/errors"
	"github.com/kimhsiao/recordkit/internal/hashing"
	"github.com/kimhsiao/recordkit/internal/models"
	"github.com/kimhsiao/recordkit/internal/providers"
	"github.com/kimhsiao/recordkit/internal/verify"
)

// VerifyEvents receives verification progress for live clients.
type VerifyEvents interface {
	BroadcastVerifyStarted(folder string)
	BroadcastVerifyFile(done, total int, f models.FileReport)
	BroadcastVerifyCompleted(r *models.VerificationReport)
	BroadcastVerifyFailed(folder string, err error)
}

// JobHandler runs verification and access-log jobs. Jobs run for the
// duration of the request; progress goes out through the websocket.
type JobHandler struct {
	app    *app.App
	events VerifyEvents
}

// NewJobHandler creates a new JobHandler. events may be nil.
func NewJobHandler(a *app.App, events VerifyEvents) *JobHandler {
	return &JobHandler{app: a, events: events}
}

// Verify handles POST /api/verify
func (h *JobHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req PathRequest
	if !decode(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, err, nil)
		return
	}

	var opts []verify.Option
	if h.events != nil {
		h.events.BroadcastVerifyStarted(req.Path)
		opts = append(opts, verify.WithProgress(h.events.BroadcastVerifyFile))
	}

	report, err := h.app.Verifier(opts...).Run(r.Context(), req.Path)
	if err != nil {
		if h.events != nil {
			h.events.BroadcastVerifyFailed(req.Path, err)
		}
		if report != nil {
			err = fmt.Errorf("%s\n%w", verify.Summary(report), err)
		}
		writeError(w, err, report)
		return
	}
	if h.events != nil {
		h.events.BroadcastVerifyCompleted(report)
	}
	writeOK(w, verify.Summary(report), report)
}

// CheckRequest compares one file with a hash.
type CheckRequest struct {
	Path      string `json:"path"`
	Hash      string `json:"hash"`
	Algorithm string `json:"algorithm"`
}

// Check handles POST /api/check
func (h *JobHandler) Check(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if !decode(w, r, &req) {
		return
	}
	if err := (PathRequest{Path: req.Path}).validate(); err != nil {
		writeError(w, err, nil)
		return
	}
	alg, err := hashing.ParseAlgorithm(req.Algorithm)
	if err != nil {
		writeError(w, err, nil)
		return
	}

	report, err := h.app.Verifier().Check(r.Context(), req.Path, req.Hash, alg)
	if err != nil {
		writeError(w, err, report)
		return
	}
	f := report.Files[0]
	writeJSON(w, http.StatusOK, Response{
		Success: f.Classification == models.Verified,
		Message: verify.CheckMessage(f),
		Data:    report,
	})
}

// Normalize handles POST /api/normalize
func (h *JobHandler) Normalize(w http.ResponseWriter, r *http.Request) {
	var req PathRequest
	if !decode(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, err, nil)
		return
	}

	summary, err := h.app.Normalizer.NormalizeFolder(r.Context(), req.Path)
	if err != nil {
		writeError(w, err, summary)
		return
	}
	writeOK(w, fmt.Sprintf("%d arquivos convertidos, %d pastas renomeadas", summary.Converted, summary.Moved), summary)
}

// AccessLogs handles POST /api/accesslogs. The path may be a folder or a
// single text record.
func (h *JobHandler) AccessLogs(w http.ResponseWriter, r *http.Request) {
	var req PathRequest
	if !decode(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, err, nil)
		return
	}

	info, err := os.Stat(req.Path)
	if err != nil {
		writeError(w, apperrors.New(apperrors.ErrNotFound, "path not found: "+req.Path), nil)
		return
	}
	if !info.IsDir() {
		sheetPath, err := h.app.AccessLogs.ProcessFile(r.Context(), req.Path)
		if err != nil {
			writeError(w, err, nil)
			return
		}
		writeOK(w, "Planilha gerada: "+sheetPath, map[string]string{"sheet": sheetPath})
		return
	}

	summary, err := h.app.AccessLogs.ProcessFolder(r.Context(), req.Path)
	if err != nil {
		writeError(w, err, summary)
		return
	}
	writeOK(w, fmt.Sprintf("Planilhas geradas: %d de %d registros", len(summary.Sheets), summary.Files), summary)
}

// Template handles POST /api/template
func (h *JobHandler) Template(w http.ResponseWriter, r *http.Request) {
	var req PathRequest
	if !decode(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, err, nil)
		return
	}

	names, err := hashing.WriteTemplate(req.Path)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeOK(w, fmt.Sprintf("%s criado com %d arquivos", hashing.TextManifestName, len(names)), names)
}

// Unzip handles POST /api/unzip. Every zip under the folder is extracted
// next to itself and removed.
func (h *JobHandler) Unzip(w http.ResponseWriter, r *http.Request) {
	var req PathRequest
	if !decode(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, err, nil)
		return
	}

	n, err := archive.UnzipInPlace(req.Path)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeOK(w, fmt.Sprintf("Arquivos extraídos: %d", n), map[string]int{"extracted": n})
}

// TransformRequest maps a provider export.
type TransformRequest struct {
	Provider string `json:"provider"`
	Path     string `json:"path"`
}

// Transform handles POST /api/transform
func (h *JobHandler) Transform(w http.ResponseWriter, r *http.Request) {
	var req TransformRequest
	if !decode(w, r, &req) {
		return
	}
	t, err := providers.ByName(req.Provider)
	if err != nil {
		writeError(w, err, nil)
		return
	}

	summary, err := h.app.AccessLogs.Transform(r.Context(), t, req.Path)
	if err != nil {
		writeError(w, err, summary)
		return
	}
	writeOK(w, summary.Message, summary)
}
