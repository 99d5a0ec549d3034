// Package handler contains the HTTP transport layer: request decoding,
// response encoding, and the mapping from domain errors to status codes.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/pulse/internal/apperror"
)

// ErrorResponse is the error shape returned by every endpoint.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// headers are already sent, logging is all that's left
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error kind to an HTTP status. Matching is by
// errors.Is on the sentinel, never by message text. Unknown errors become an
// opaque 500 so internals never leak to clients.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "an internal error occurred",
		})
		return
	}

	status := http.StatusInternalServerError
	errorType := "internal_error"

	switch {
	case errors.Is(err, apperror.ErrValidation):
		status = http.StatusBadRequest
		errorType = "validation_error"
	case errors.Is(err, apperror.ErrNotFound):
		status = http.StatusNotFound
		errorType = "not_found"
	case errors.Is(err, apperror.ErrUnknownApiToken):
		status = http.StatusUnauthorized
		errorType = "unknown_api_token"
	case errors.Is(err, apperror.ErrInvalidCredentials):
		status = http.StatusUnauthorized
		errorType = "invalid_credentials"
	case errors.Is(err, apperror.ErrExpiredRefreshToken):
		status = http.StatusUnauthorized
		errorType = "expired_refresh_token"
	case errors.Is(err, apperror.ErrMissingRefreshToken):
		status = http.StatusUnauthorized
		errorType = "missing_refresh_token"
	case errors.Is(err, apperror.ErrUsernameExists):
		status = http.StatusConflict
		errorType = "username_taken"
	case errors.Is(err, apperror.ErrInvalidRelation),
		errors.Is(err, apperror.ErrInvalidTagRelation):
		status = http.StatusForbidden
		errorType = "forbidden"
	}

	writeJSON(w, status, ErrorResponse{
		Error:   errorType,
		Message: appErr.Message,
	})
}
