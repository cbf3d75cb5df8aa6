package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kimhsiao/recordkit/internal/errors"
	"github.com/kimhsiao/recordkit/internal/models"
)

const runID = "2f1c6b1e-8a8f-4b52-9d3e-0c8a6b7f1a22"

type fakeRuns struct {
	reports map[string]string
}

func (f *fakeRuns) ListRuns(limit int) ([]models.RunSummary, error) {
	return []models.RunSummary{{ID: runID, Folder: "/evidence"}}, nil
}

func (f *fakeRuns) GetRunReport(id string) (string, error) {
	md, ok := f.reports[id]
	if !ok {
		return "", apperrors.New(apperrors.ErrNotFound, "verification run "+id)
	}
	return md, nil
}

func (f *fakeRuns) GetRunFiles(id string) ([]models.FileReport, error) {
	return nil, nil
}

func serve(h http.HandlerFunc, pattern, target string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.HandleFunc(pattern, h)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestGetRunReport(t *testing.T) {
	runs := &fakeRuns{reports: map[string]string{
		runID: "# Relatório de hashes\n\n| Arquivo | Resultado |\n|---|---|\n| a.zip | OK |\n",
	}}
	h := NewRunHandler(runs)

	rec := serve(h.GetRunReport, "GET /api/runs/{id}/report", "/api/runs/"+strings.ToUpper(runID)+"/report")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<h1>Relatório de hashes</h1>")
	assert.Contains(t, body, "<td>a.zip</td>")

	rec = serve(h.GetRunReport, "GET /api/runs/{id}/report", "/api/runs/"+runID+"/report?format=markdown")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, runs.reports[runID], rec.Body.String())
}

func TestGetRunReport_Errors(t *testing.T) {
	h := NewRunHandler(&fakeRuns{reports: map[string]string{runID: ""}})

	rec := serve(h.GetRunReport, "GET /api/runs/{id}/report", "/api/runs/x/report")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h.GetRunReport, "GET /api/runs/{id}/report", "/api/runs/"+runID+"/report")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "has not finished")

	rec = serve(h.GetRunReport, "GET /api/runs/{id}/report", "/api/runs/7c9e6679-7425-40de-944b-e07fc1f90ae7/report")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHistoryDisabled(t *testing.T) {
	h := NewRunHandler(nil)

	rec := serve(h.ListRuns, "GET /api/runs", "/api/runs")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
}

func TestListRuns(t *testing.T) {
	h := NewRunHandler(&fakeRuns{})

	rec := serve(h.ListRuns, "GET /api/runs", "/api/runs?limit=5")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), runID)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperrors.New(apperrors.ErrInvalid, "x"), http.StatusBadRequest},
		{apperrors.New(apperrors.ErrManifestMissing, "x"), http.StatusNotFound},
		{fmt.Errorf("summary\n%w", apperrors.New(apperrors.ErrFolderBusy, "x")), http.StatusConflict},
		{apperrors.New(apperrors.ErrReportFailed, "x"), http.StatusInternalServerError},
		{context.Canceled, http.StatusServiceUnavailable},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestJobs_RejectBadRequests(t *testing.T) {
	h := NewJobHandler(nil, nil)

	rec := httptest.NewRecorder()
	h.Template(rec, httptest.NewRequest(http.MethodGet, "/api/template", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	h.Template(rec, httptest.NewRequest(http.MethodPost, "/api/template", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.Transform(rec, httptest.NewRequest(http.MethodPost, "/api/transform", strings.NewReader(`{"provider":"yahoo"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_INPUT")
}
