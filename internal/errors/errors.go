// Package errors provides error codes shared by the pipelines, the CLI and the desktop API.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode identifies a failure class reported to the caller.
type ErrorCode string

const (
	// General errors
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
	ErrInvalid    ErrorCode = "INVALID_INPUT"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrValidation ErrorCode = "VALIDATION_ERROR"

	// Database errors
	ErrDatabase  ErrorCode = "DATABASE_ERROR"
	ErrMigration ErrorCode = "MIGRATION_FAILED"

	// Record normalization errors
	ErrStructuralParse      ErrorCode = "STRUCTURAL_PARSE"
	ErrFolderMove           ErrorCode = "FOLDER_MOVE_FAILED"
	ErrDestinationCollision ErrorCode = "DESTINATION_COLLISION"
	ErrArchive              ErrorCode = "ARCHIVE_FAILED"
	ErrExtractionTimeout    ErrorCode = "EXTRACTION_TIMEOUT"
	ErrFolderBusy           ErrorCode = "FOLDER_BUSY"

	// Enrichment errors
	ErrEnrichment ErrorCode = "ENRICHMENT_FAILED"

	// Verification errors
	ErrManifestMissing ErrorCode = "MANIFEST_MISSING"
	ErrManifestInvalid ErrorCode = "MANIFEST_INVALID"
	ErrReportFailed    ErrorCode = "REPORT_FAILED"

	// Portal errors
	ErrSessionExpired ErrorCode = "SESSION_EXPIRED"
)

// AppError represents an application error with code and message.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is checks if err, or any error it wraps, is an AppError with the given code.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// CodeOf returns the code of the outermost AppError in err's chain.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// ExitCode maps a pipeline result to the process exit status expected by the GUI.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case Is(err, ErrSessionExpired):
		return 2
	default:
		return 1
	}
}
