package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dukerupert/storefront/internal/domain"
	"github.com/dukerupert/storefront/internal/middleware"
)

// JSON writes v as the response body with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// DecodeJSON reads the request body into dst and validates it with the
// struct's `validate` tags. Malformed JSON, a body over the size limit and
// failed validation each come back as a domain error ready for
// ErrorResponse.
func DecodeJSON(r *http.Request, op string, dst any) error {
	if r.Body == nil {
		return domain.Errorf(domain.EINVALID, op, "Request body is required")
	}

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return domain.Errorf(domain.ETOOLARGE, op, "Request body too large")
		case errors.Is(err, io.EOF):
			return domain.Errorf(domain.EINVALID, op, "Request body is required")
		default:
			middleware.GetLogger(r.Context()).Debug("malformed request body", "op", op, "error", err)
			return domain.Errorf(domain.EINVALID, op, "Invalid request body")
		}
	}

	return Validate(op, dst)
}
