package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/geosoil-inc/geosoil-engine/pkg/apperrors"
	"github.com/geosoil-inc/geosoil-engine/pkg/models"
)

// ApiResponse wraps data in the format expected by the frontend.
type ApiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// RunErrorResponse is the body of a failed upload. RunID and
// BatchesCommitted are set once the run has started.
type RunErrorResponse struct {
	Error            string     `json:"error"`
	Message          string     `json:"message"`
	RunID            *uuid.UUID `json:"run_id,omitempty"`
	Stage            string     `json:"stage,omitempty"`
	BatchesCommitted *int       `json:"batches_committed,omitempty"`
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// writeGeoJSON writes a GeoJSON document with the geo+json media type.
func writeGeoJSON(w http.ResponseWriter, data interface{}) error {
	w.Header().Set("Content-Type", "application/geo+json")
	return json.NewEncoder(w).Encode(data)
}

// StatusForError maps an application error to its HTTP status: 400 for
// rejected input, 404 and 409 for lookups and conflicts, 500 otherwise.
func StatusForError(err error) int {
	switch {
	case apperrors.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrPersistenceConflict), errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError answers with the mapped status and the error kind as
// code. Server errors are logged and get a generic message.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, msg string, err error) {
	status := StatusForError(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		logger.Error(msg, zap.Error(err))
		message = "Internal server error"
	}
	if err := ErrorResponse(w, status, apperrors.Kind(err), message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}

// writeRunError is writeServiceError for uploads: the body also names the
// run and how many batches stayed committed. The full message of a server
// error stays on the run record.
func writeRunError(w http.ResponseWriter, logger *zap.Logger, report *models.IngestionReport, err error) {
	status := StatusForError(err)
	body := RunErrorResponse{
		Error:   apperrors.Kind(err),
		Message: err.Error(),
	}
	if status >= http.StatusInternalServerError {
		logger.Error("Ingestion run failed", zap.Error(err))
		body.Message = "Internal server error"
	}
	if report != nil && report.RunID != uuid.Nil {
		runID := report.RunID
		batches := report.BatchesCommitted
		body.RunID = &runID
		body.Stage = report.Stage
		body.BatchesCommitted = &batches
	}
	if err := WriteJSON(w, status, body); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}
