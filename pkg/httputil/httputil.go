package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/medflow/medical-ocr/pkg/errors"
)

// ErrorBody is the error envelope every endpoint uses.
type ErrorBody struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Detail  string            `json:"detail,omitempty"`
	Code    string            `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// JSON sends a JSON response. Payloads are written as-is, without an
// envelope, so handlers control the response shape.
func JSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	json.NewEncoder(w).Encode(data)
}

// Error sends an error response
func Error(w http.ResponseWriter, err error) {
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		JSON(w, appErr.StatusCode, ErrorBody{
			Success: false,
			Error:   appErr.Message,
			Detail:  appErr.Detail,
			Code:    appErr.Code,
			Details: appErr.Details,
		})
		return
	}

	// Default to internal server error
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	JSON(w, http.StatusInternalServerError, ErrorBody{
		Success: false,
		Error:   "Internal server error",
		Detail:  detail,
		Code:    "INTERNAL_ERROR",
	})
}

// NoContent sends a 204 No Content response
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
