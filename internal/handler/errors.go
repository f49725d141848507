package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/pkordes/triptales/internal/domain"
	"github.com/pkordes/triptales/internal/upload"
)

// ErrorDetail is the machine-readable code and human message of a failure.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an ErrorResponse.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// requestError rejects a request before it reaches the service layer
// (e.g. missing or malformed body).
func requestError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnprocessableEntity, "validation_error", message)
}

// serviceError maps a service error to its HTTP status. Upload, store and
// unexpected failures are logged and answered with a generic message.
func (s *Server) serviceError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
	case errors.Is(err, domain.ErrAuth):
		writeError(w, http.StatusUnauthorized, "unauthorized", "not authenticated")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", notFound)
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, "validation_error", unwrapMessage(err, domain.ErrValidation))
	case errors.Is(err, upload.ErrUnsupportedSource), errors.Is(err, upload.ErrNotImage):
		// The photo reference itself is unusable; nothing reached the asset host.
		writeError(w, http.StatusUnprocessableEntity, "invalid_photo", unwrapMessage(err, domain.ErrUpload))
	case errors.Is(err, domain.ErrUpload):
		s.log.ErrorContext(r.Context(), "photo upload failed", "error", err)
		writeError(w, http.StatusBadGateway, "upload_failed", "photo upload failed")
	case errors.Is(err, domain.ErrStore):
		s.log.ErrorContext(r.Context(), "record store failure", "error", err)
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "trip store unavailable, try again")
	default:
		s.log.ErrorContext(r.Context(), "unhandled error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// unwrapMessage extracts the human-readable part after a wrapped sentinel.
// e.g. "tripsync.Engine.Create: validation error: title is required" → "title is required"
func unwrapMessage(err, sentinel error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	marker := sentinel.Error() + ": "
	if i := strings.LastIndex(msg, marker); i >= 0 && len(msg) > i+len(marker) {
		return msg[i+len(marker):]
	}
	return msg
}
