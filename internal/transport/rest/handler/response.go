package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"coherence/internal/service"
)

// Error codes returned in the error body
const (
	CodeInvalidFormat         = "INVALID_FORMAT"
	CodeVideoTooLarge         = "VIDEO_TOO_LARGE"
	CodeMissingFile           = "MISSING_FILE"
	CodeNotFound              = "NOT_FOUND"
	CodeProcessingNotComplete = "PROCESSING_NOT_COMPLETE"
	CodeAlreadyProcessing     = "ALREADY_PROCESSING"
	CodeUnavailable           = "SERVICE_UNAVAILABLE"
	CodeInternal              = "INTERNAL_ERROR"
)

// ErrorResponse is the body of every non-2xx API response
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string, retryable bool) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code, Retryable: retryable})
}

// writeServiceError maps service sentinel errors onto API errors
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error, notFound string) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, CodeNotFound, notFound, false)
	case errors.Is(err, service.ErrProcessingNotComplete):
		writeError(w, http.StatusTooEarly, CodeProcessingNotComplete, "Video processing not complete", true)
	case errors.Is(err, service.ErrAlreadyProcessing):
		writeError(w, http.StatusConflict, CodeAlreadyProcessing, "Video is still being processed", true)
	case errors.Is(err, service.ErrInvalidFormat):
		writeError(w, http.StatusBadRequest, CodeInvalidFormat, "Invalid video format. Please use MP4, MOV, or WebM.", true)
	case errors.Is(err, service.ErrVideoTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, CodeVideoTooLarge, "Video file is too large.", true)
	case errors.Is(err, service.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, CodeUnavailable, "Service unavailable", true)
	default:
		logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "Internal server error", true)
	}
}
