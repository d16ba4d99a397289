package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/storefront/internal/domain"
	"github.com/dukerupert/storefront/internal/middleware"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Code    string            `json:"code,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// ErrorResponse logs err and writes the matching status and JSON body.
// Internal and upstream errors are reported with a generic message; the
// detail only reaches the log.
func ErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	if domain.IsValidationError(err) {
		ValidationErrorResponse(w, r, err)
		return
	}

	code := domain.ErrorCode(err)
	status := middleware.HTTPStatus(code)
	logError(r, err, code, status)

	JSON(w, status, ErrorBody{Message: domain.ErrorMessage(err), Code: code})
}

// ValidationErrorResponse writes a 400 with per-field messages. Errors that
// are not validation errors fall back to ErrorResponse.
func ValidationErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	if !domain.IsValidationError(err) {
		ErrorResponse(w, r, err)
		return
	}

	logError(r, err, domain.EINVALID, http.StatusBadRequest)
	JSON(w, http.StatusBadRequest, ErrorBody{
		Message: "Validation failed",
		Code:    domain.EINVALID,
		Errors:  domain.GetValidationFields(err),
	})
}

// NotFoundResponse writes a generic 404.
func NotFoundResponse(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(w, r, domain.Errorf(domain.ENOTFOUND, "", "The requested resource was not found"))
}

// UnauthorizedResponse writes a generic 401.
func UnauthorizedResponse(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(w, r, domain.Errorf(domain.EUNAUTHORIZED, "", "Authentication required"))
}

// logError logs server errors at error level and client errors at info.
func logError(r *http.Request, err error, code string, status int) {
	attrs := []any{"error", err.Error(), "code", code, "status", status}
	if op := domain.ErrorOp(err); op != "" {
		attrs = append(attrs, "op", op)
	}

	msg, level := "request rejected", slog.LevelInfo
	if status >= http.StatusInternalServerError {
		msg, level = "request failed", slog.LevelError
	}
	middleware.GetLogger(r.Context()).Log(r.Context(), level, msg, attrs...)
}
