package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes. The HTTP layer maps each to a status; the code itself is
// also returned to clients in the "code" field of error bodies.
const (
	EINVALID      = "invalid"      // 400: bad input, insufficient stock, bad webhook signature
	EUNAUTHORIZED = "unauthorized" // 401: missing, invalid or revoked admin token
	EFORBIDDEN    = "forbidden"    // 403: token lacks the admin role
	ENOTFOUND     = "not_found"    // 404
	ECONFLICT     = "conflict"     // 409: state does not allow the transition
	ETOOLARGE     = "too_large"    // 413
	ERATELIMIT    = "rate_limit"   // 429
	EINTERNAL     = "internal"     // 500: details hidden from clients
	EEXTERNAL     = "external"     // 500: payment processor failure
)

// Error is an application error. Message is safe to show to clients;
// Op and Err are for logs only.
type Error struct {
	Code    string
	Message string
	Op      string // e.g. "order.create"
	Err     error
}

func (e *Error) Error() string {
	parts := make([]string, 0, 3)
	if e.Op != "" {
		parts = append(parts, e.Op)
	}
	parts = append(parts, e.Message)
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *Error) Unwrap() error {
	return e.Err
}

func asError(err error) (*Error, bool) {
	var e *Error
	if err == nil || !errors.As(err, &e) {
		return nil, false
	}
	return e, true
}

const genericMessage = "An internal error occurred. Please try again later."

// ErrorCode returns the code of the first *Error in err's chain, EINTERNAL
// for any other error and "" for nil.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	if e, ok := asError(err); ok {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage returns the message a client may see. Internal errors and
// foreign errors collapse to a generic message.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	e, ok := asError(err)
	switch {
	case !ok, e.Code == EINTERNAL:
		return genericMessage
	case e.Code == EEXTERNAL && e.Message == "":
		// Upstream text can carry processor request ids and card details.
		return "A payment service error occurred. Please try again later."
	}
	return e.Message
}

// ErrorOp returns the operation recorded on err, if any.
func ErrorOp(err error) string {
	if e, ok := asError(err); ok {
		return e.Op
	}
	return ""
}

// Errorf returns an *Error with a formatted message.
func Errorf(code, op, format string, args ...any) error {
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches a code, operation and client message to err. It
// returns nil when err is nil.
func WrapError(err error, code, op, message string) error {
	if err == nil {
		return nil
	}

	return &Error{Code: code, Op: op, Message: message, Err: err}
}

// IsCode reports whether err carries code.
func IsCode(err error, code string) bool {
	return ErrorCode(err) == code
}

// ValidationError collects per-field failures for a request. Field keys use
// the JSON path of the field, e.g. "items[0].quantity".
type ValidationError struct {
	Fields map[string]string
	Op     string
}

func (e *ValidationError) Error() string {
	var msg string
	if len(e.Fields) == 1 {
		for field, text := range e.Fields {
			msg = field + ": " + text
		}
	} else {
		msg = fmt.Sprintf("validation failed for %d fields", len(e.Fields))
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

// NewValidationError returns a ValidationError for one field.
func NewValidationError(op, field, message string) error {
	return &ValidationError{Op: op, Fields: map[string]string{field: message}}
}

// AddFieldError records a field failure on err, starting a new
// ValidationError when err is nil or of another type.
func AddFieldError(err error, field, message string) error {
	var ve *ValidationError
	if err != nil && errors.As(err, &ve) {
		ve.Fields[field] = message
		return ve
	}

	return &ValidationError{Fields: map[string]string{field: message}}
}

// IsValidationError reports whether err's chain holds a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// GetValidationFields returns the field failures in err, or nil.
func GetValidationFields(err error) map[string]string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Fields
	}
	return nil
}

// NotFound returns an ENOTFOUND error naming the missing resource.
func NotFound(op, resource, identifier string) error {
	return Errorf(ENOTFOUND, op, "%s not found: %s", resource, identifier)
}

// Forbidden returns an EFORBIDDEN error.
func Forbidden(op, message string) error {
	return &Error{Code: EFORBIDDEN, Op: op, Message: message}
}

// Conflict returns an ECONFLICT error.
func Conflict(op, message string) error {
	return &Error{Code: ECONFLICT, Op: op, Message: message}
}

// Internal wraps err as EINTERNAL. Clients only ever see the generic
// message.
func Internal(err error, op, message string) error {
	return &Error{Code: EINTERNAL, Op: op, Message: message, Err: err}
}
