package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"pdf-ocr-server/internal/domain"
	apperrors "pdf-ocr-server/pkg/errors"
)

// writeError writes an error response
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// writeJSON writes a JSON response. Non-ASCII text is written as-is.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(data)
}

// writeServiceError maps a service error onto a status code and message.
func writeServiceError(w http.ResponseWriter, logger domain.Logger, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "Job not found")
		return
	case errors.Is(err, domain.ErrResultNotFound):
		writeError(w, http.StatusNotFound, "Results not found")
		return
	case errors.Is(err, domain.ErrImageNotFound):
		writeError(w, http.StatusNotFound, "Image not found")
		return
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Type != apperrors.ErrorTypeInternal {
		writeError(w, appErr.StatusCode, appErr.Message)
		return
	}

	logger.Error(fallback, err)
	writeError(w, http.StatusInternalServerError, fallback)
}
