package api

import (
	"encoding/json"
	"net/http"

	"github.com/trust-engine/internal/errors"
)

// Common error codes
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: errorBody{
			Code:    code,
			Message: message,
		},
	}

	json.NewEncoder(w).Encode(response)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// mapServiceError maps service errors to HTTP status codes.
func mapServiceError(err error) (int, string) {
	if errors.IsNotFound(err) {
		return http.StatusNotFound, ErrCodeNotFound
	}
	if errors.CategoryOf(err) == errors.CategoryValidation {
		return http.StatusBadRequest, ErrCodeInvalidInput
	}
	return http.StatusInternalServerError, ErrCodeInternalError
}
