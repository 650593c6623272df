// Package response writes JSON responses for handlers that run outside huma,
// such as middleware rejecting a request before it reaches an operation.
package response

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/moodtune/moodtune-sync/internal/errors"
)

// ErrorBody has the same shape as the API's huma error responses.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// JSON writes data as a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		if logger != nil {
			logger.Error("Failed to encode JSON response", "error", err)
		}
	}
}

// NoContent writes a 204 No Content response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error writes an error response with an explicit code.
func Error(w http.ResponseWriter, status int, code errors.Code, message string, logger *slog.Logger) {
	JSON(w, status, ErrorBody{Code: string(code), Message: message}, logger)
}

// Unauthorized writes a 401 Unauthorized response.
func Unauthorized(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusUnauthorized, errors.CodeUnauthorized, message, logger)
}

// TooManyRequests writes a 429 Too Many Requests response. Clients treat it
// as a transient failure.
func TooManyRequests(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusTooManyRequests, errors.CodeRemoteTransient, message, logger)
}

// HandleError writes the response for err. Coded errors keep their code and
// status, anything else becomes a 500.
func HandleError(w http.ResponseWriter, err error, logger *slog.Logger) {
	var coded *errors.Error
	if errors.As(err, &coded) {
		JSON(w, coded.HTTPStatus(), ErrorBody{
			Code:    string(coded.Code),
			Message: coded.Message,
			Details: coded.Details,
		}, logger)
		return
	}

	if logger != nil {
		logger.Error("Unhandled error", "error", err)
	}
	Error(w, http.StatusInternalServerError, errors.CodeInternal, "internal server error", logger)
}
