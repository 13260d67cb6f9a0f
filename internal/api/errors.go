package api

import (
	"encoding/json"
	"net/http"

	tverrors "tagvis/internal/errors"
)

// ErrorResponse represents an HTTP error response
type ErrorResponse struct {
	Error          string               `json:"error"`
	Code           string               `json:"code"`
	Details        interface{}          `json:"details,omitempty"`
	SuggestedFixes []tverrors.FixAction `json:"suggestedFixes,omitempty"`
}

// WriteError writes an error response to the HTTP response writer
func WriteError(w http.ResponseWriter, err error, status int) {
	resp := ErrorResponse{
		Error: err.Error(),
		Code:  string(tverrors.CodeOf(err)),
	}
	if te, ok := err.(*tverrors.TagvisError); ok {
		resp.Error = te.Message
		resp.Details = te.Details
		resp.SuggestedFixes = te.SuggestedFixes
	}
	WriteJSON(w, resp, status)
}

// WriteTagvisError writes err with a status derived from its code
func WriteTagvisError(w http.ResponseWriter, err error) {
	WriteError(w, err, MapErrorToStatus(tverrors.CodeOf(err)))
}

// MapErrorToStatus maps error codes to HTTP status codes
func MapErrorToStatus(code tverrors.ErrorCode) int {
	switch code {
	case tverrors.ProviderUnavailable:
		return http.StatusServiceUnavailable // 503
	case tverrors.QueryFailed:
		return http.StatusBadGateway // 502
	case tverrors.QueryUnsuccessful:
		return http.StatusUnprocessableEntity // 422
	case tverrors.InvalidQuery:
		return http.StatusBadRequest // 400
	case tverrors.IndexMissing:
		return http.StatusNotFound // 404
	case tverrors.ConfigInvalid:
		return http.StatusBadRequest // 400
	default:
		return http.StatusInternalServerError // 500
	}
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// BadRequest writes a 400 Bad Request error
func BadRequest(w http.ResponseWriter, message string) {
	WriteError(w, tverrors.New(tverrors.InvalidQuery, message, nil), http.StatusBadRequest)
}

// InternalError writes a 500 Internal Server Error
func InternalError(w http.ResponseWriter, message string, err error) {
	WriteError(w, tverrors.New(tverrors.InternalError, message, err), http.StatusInternalServerError)
}

// methodNotAllowed writes a 405 listing the allowed methods
func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
}
