// Package handlers provides the REST API used by the desktop shell.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/kimhsiao/recordkit/internal/errors"
	"github.com/kimhsiao/recordkit/internal/logging"
)

// Response is the body of every job endpoint. The shell shows Message in
// a single dialog.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Code    string      `json:"code,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Warn("failed to encode response", map[string]interface{}{"error": err.Error()})
	}
}

func writeOK(w http.ResponseWriter, message string, data interface{}) {
	writeJSON(w, http.StatusOK, Response{Success: true, Message: message, Data: data})
}

func writeError(w http.ResponseWriter, err error, data interface{}) {
	writeJSON(w, statusFor(err), Response{
		Success: false,
		Message: err.Error(),
		Code:    string(apperrors.CodeOf(err)),
		Data:    data,
	})
}

// statusFor maps error codes to HTTP statuses.
func statusFor(err error) int {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable
	}
	switch apperrors.CodeOf(err) {
	case apperrors.ErrInvalid, apperrors.ErrValidation, apperrors.ErrManifestInvalid:
		return http.StatusBadRequest
	case apperrors.ErrNotFound, apperrors.ErrManifestMissing:
		return http.StatusNotFound
	case apperrors.ErrFolderBusy:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// decode reads a JSON body into v, rejecting anything but POST.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, apperrors.Wrap(apperrors.ErrInvalid, "invalid request body", err), nil)
		return false
	}
	return true
}

// PathRequest names the folder or file a job works on.
type PathRequest struct {
	Path string `json:"path"`
}

func (p PathRequest) validate() error {
	if p.Path == "" {
		return apperrors.New(apperrors.ErrInvalid, "path is required")
	}
	return nil
}
