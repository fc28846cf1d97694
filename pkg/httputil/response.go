package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	apperrors "github.com/neargud/catalog/pkg/errors"
	"github.com/neargud/catalog/pkg/logger"
	"github.com/neargud/catalog/pkg/validator"
)

// Response is the standard JSON response envelope.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse represents an error in the standard response format.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON writes v as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteData writes v wrapped in the data envelope.
func WriteData(w http.ResponseWriter, status int, v any) {
	WriteJSON(w, status, Response{Data: v})
}

// WriteError maps err onto the error envelope. AppErrors keep their code,
// status and fields; validation and decode errors become 400s; everything
// else is logged and reported as an opaque 500.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		l = fallback
	}
	requestID := logger.CorrelationIDFromContext(r.Context())

	var (
		appErr *apperrors.AppError
		valErr *validator.ValidationError
		decErr *validator.DecodeError
	)
	switch {
	case errors.As(err, &appErr):
		if appErr.Status >= http.StatusInternalServerError {
			logInternal(l, r, err)
		}
		WriteJSON(w, appErr.Status, Response{Error: &ErrorResponse{
			Code: appErr.Code, Message: appErr.Message, Fields: appErr.Fields, RequestID: requestID,
		}})
	case errors.As(err, &valErr):
		WriteJSON(w, http.StatusBadRequest, Response{Error: &ErrorResponse{
			Code: "VALIDATION_ERROR", Message: "request validation failed", Fields: valErr.Fields(), RequestID: requestID,
		}})
	case errors.As(err, &decErr):
		WriteJSON(w, http.StatusBadRequest, Response{Error: &ErrorResponse{
			Code: "MALFORMED_INPUT", Message: decErr.Error(), RequestID: requestID,
		}})
	default:
		status := apperrors.HTTPStatus(err)
		if status >= http.StatusInternalServerError {
			logInternal(l, r, err)
			WriteJSON(w, status, Response{Error: &ErrorResponse{
				Code: "INTERNAL_ERROR", Message: "an internal error occurred", RequestID: requestID,
			}})
			return
		}
		WriteJSON(w, status, Response{Error: &ErrorResponse{
			Code: codeForStatus(status), Message: err.Error(), RequestID: requestID,
		}})
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "CONFLICT"
	case http.StatusUnprocessableEntity:
		return "UNPROCESSABLE"
	case http.StatusServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	default:
		return "INVALID_INPUT"
	}
}

func logInternal(l *slog.Logger, r *http.Request, err error) {
	l.ErrorContext(r.Context(), "internal error",
		slog.String("error", err.Error()),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)
}

// ParseUUID validates param as a UUID. On failure it writes a 400 with code
// INVALID_PARAMETER and returns false.
func ParseUUID(w http.ResponseWriter, param string) (string, bool) {
	id, err := uuid.Parse(param)
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, Response{Error: &ErrorResponse{
			Code:    "INVALID_PARAMETER",
			Message: "invalid UUID: " + param,
		}})
		return "", false
	}
	return id.String(), true
}
