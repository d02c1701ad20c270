package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lok-dashboard/internal/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
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

// respondServiceError maps a service error to an HTTP response.
func respondServiceError(w http.ResponseWriter, err error) {
	status, code, message := mapServiceError(err)
	respondError(w, status, code, message, nil)
}

// mapServiceError maps service errors to HTTP status codes.
func mapServiceError(err error) (int, string, string) {
	var serviceErr *types.ServiceError
	if errors.As(err, &serviceErr) {
		switch serviceErr.Code {
		case types.ErrCodeInvalidDateRange:
			return http.StatusBadRequest, serviceErr.Code, serviceErr.Message
		case types.ErrCodeNotFound, types.ErrCodeEmptyResponse:
			return http.StatusNotFound, serviceErr.Code, serviceErr.Message
		case types.ErrCodeForbiddenExhausted, types.ErrCodeUpstreamError:
			return http.StatusBadGateway, serviceErr.Code, serviceErr.Message
		default:
			return http.StatusInternalServerError, types.ErrCodeInternalError, "An internal error occurred"
		}
	}

	return http.StatusInternalServerError, types.ErrCodeInternalError, "An internal error occurred"
}
