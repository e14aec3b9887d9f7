// Package handlers exposes the profile network over HTTP.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/shambu-network/shambu/pkg/apperrors"
	"github.com/shambu-network/shambu/pkg/auth"
)

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
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// errorStatus maps domain errors to an HTTP status and error code. Order
// matters: write and fetch failures wrap the more specific cause.
var errorStatus = []struct {
	err    error
	status int
	code   string
}{
	{apperrors.ErrNotFound, http.StatusNotFound, "not_found"},
	{apperrors.ErrSelfConnection, http.StatusUnprocessableEntity, "self_connection"},
	{apperrors.ErrInvalidStrength, http.StatusUnprocessableEntity, "invalid_strength"},
	{apperrors.ErrInvalidConnectionType, http.StatusUnprocessableEntity, "invalid_connection_type"},
	{apperrors.ErrInvalidProfile, http.StatusUnprocessableEntity, "invalid_profile"},
	{apperrors.ErrInvalidConnection, http.StatusUnprocessableEntity, "invalid_connection"},
	{apperrors.ErrViewClosed, http.StatusServiceUnavailable, "shutting_down"},
	{apperrors.ErrMalformedRow, http.StatusBadGateway, "malformed_row"},
	{apperrors.ErrInvalidTimestamp, http.StatusBadGateway, "malformed_row"},
	{apperrors.ErrFetchFailed, http.StatusBadGateway, "fetch_failed"},
	{apperrors.ErrWriteFailed, http.StatusBadGateway, "write_failed"},
}

// StatusFor returns the HTTP status and error code for err.
func StatusFor(err error) (int, string) {
	for _, m := range errorStatus {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeError writes err as a JSON error response. Server-side failures are
// logged; client errors are not.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error, msg string) {
	status, code := StatusFor(err)
	message := msg
	if status < http.StatusInternalServerError {
		message = err.Error()
	} else {
		logger.Error(msg, zap.Int("status", status), zap.Error(err))
	}
	if err := ErrorResponse(w, status, code, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}

func writeOK(w http.ResponseWriter, logger *zap.Logger, status int, data any) {
	if err := WriteJSON(w, status, data); err != nil {
		logger.Error("Failed to write response", zap.Error(err))
	}
}

// decodeJSON decodes the request body into dst, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, logger *zap.Logger, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_json", "Invalid request body: "+err.Error()); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return false
	}
	return true
}

// actor names the authenticated caller in write logs. Empty when auth is off.
func actor(ctx context.Context) zap.Field {
	return zap.String("user_id", auth.GetUserIDFromContext(ctx))
}
