package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/storefront/internal/domain"
)

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestErrorResponse(t *testing.T) {
	const generic = "An internal error occurred. Please try again later."

	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantMessage string
		wantFields  map[string]string
	}{
		{
			name:        "not found",
			err:         domain.NotFound("order.get", "order", "abc-123"),
			wantStatus:  http.StatusNotFound,
			wantCode:    domain.ENOTFOUND,
			wantMessage: "order not found: abc-123",
		},
		{
			name:        "insufficient stock",
			err:         domain.Errorf(domain.EINVALID, "order.create", "Insufficient stock for Mug: requested 3, available 1"),
			wantStatus:  http.StatusBadRequest,
			wantCode:    domain.EINVALID,
			wantMessage: "Insufficient stock for Mug: requested 3, available 1",
		},
		{
			name:        "terminal order",
			err:         domain.Conflict("order.update_status", "Order is cancelled and cannot change status"),
			wantStatus:  http.StatusConflict,
			wantCode:    domain.ECONFLICT,
			wantMessage: "Order is cancelled and cannot change status",
		},
		{
			name:        "internal hides detail",
			err:         domain.Internal(errors.New("dial 10.0.0.5:5432"), "db.query", "failed to connect to database at 10.0.0.5"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    domain.EINTERNAL,
			wantMessage: generic,
		},
		{
			name:        "foreign error is internal",
			err:         errors.New("nil map write"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    domain.EINTERNAL,
			wantMessage: generic,
		},
		{
			name:        "external keeps sanitized message",
			err:         domain.WrapError(errors.New("card_declined req_9"), domain.EEXTERNAL, "payment.refund", "Refund could not be issued"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    domain.EEXTERNAL,
			wantMessage: "Refund could not be issued",
		},
		{
			name:        "validation errors carry fields",
			err:         domain.NewValidationError("order.create", "paymentMethod", "is required"),
			wantStatus:  http.StatusBadRequest,
			wantCode:    domain.EINVALID,
			wantMessage: "Validation failed",
			wantFields:  map[string]string{"paymentMethod": "is required"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			ErrorResponse(rec, httptest.NewRequest(http.MethodGet, "/orders", nil), tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			body := decodeBody(t, rec)
			assert.False(t, body.Success)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.wantMessage, body.Message)
			assert.Equal(t, tt.wantFields, body.Errors)
		})
	}
}

func TestValidationErrorResponse(t *testing.T) {
	t.Run("lists every field", func(t *testing.T) {
		err := domain.NewValidationError("order.create", "customerInfo.name", "is required")
		err = domain.AddFieldError(err, "items", "must contain at least 1 item(s)")

		rec := httptest.NewRecorder()
		ValidationErrorResponse(rec, httptest.NewRequest(http.MethodPost, "/orders", nil), err)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, map[string]string{
			"customerInfo.name": "is required",
			"items":             "must contain at least 1 item(s)",
		}, decodeBody(t, rec).Errors)
	})

	t.Run("other errors fall back", func(t *testing.T) {
		rec := httptest.NewRecorder()
		ValidationErrorResponse(rec, httptest.NewRequest(http.MethodPost, "/orders", nil), domain.NotFound("product.get", "product", "123"))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestGenericResponses(t *testing.T) {
	tests := []struct {
		name    string
		respond http.HandlerFunc
		want    int
	}{
		{"not found", NotFoundResponse, http.StatusNotFound},
		{"unauthorized", UnauthorizedResponse, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.respond(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

type decodeTarget struct {
	Email    string `json:"email" validate:"required,email"`
	Quantity int    `json:"quantity" validate:"min=1"`
	Lines    []struct {
		ProductID string `json:"productId" validate:"required,uuid"`
	} `json:"lines" validate:"required,min=1,dive"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantCode   string
		wantFields map[string]string
	}{
		{
			name: "valid body",
			body: `{"email":"ada@example.com","quantity":2,"lines":[{"productId":"0b7e4d9a-1d38-4bd5-9d0e-3f7e5a2c9b11"}]}`,
		},
		{
			name:     "malformed json",
			body:     `{"email":`,
			wantCode: domain.EINVALID,
		},
		{
			name:     "empty body",
			body:     ``,
			wantCode: domain.EINVALID,
		},
		{
			name:     "field errors use json paths",
			body:     `{"email":"nope","quantity":0,"lines":[{"productId":"x"}]}`,
			wantCode: domain.EINVALID,
			wantFields: map[string]string{
				"email":              "must be a valid email address",
				"quantity":           "must be at least 1",
				"lines[0].productId": "must be a valid id",
			},
		},
		{
			name:     "missing slice",
			body:     `{"email":"ada@example.com","quantity":1}`,
			wantCode: domain.EINVALID,
			wantFields: map[string]string{
				"lines": "is required",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(tt.body))

			var dst decodeTarget
			err := DecodeJSON(req, "test.decode", &dst)

			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if tt.wantFields == nil {
				if got := domain.ErrorCode(err); got != tt.wantCode {
					t.Errorf("code = %q, want %q", got, tt.wantCode)
				}
				return
			}
			fields := domain.GetValidationFields(err)
			for field, msg := range tt.wantFields {
				if fields[field] != msg {
					t.Errorf("fields[%s] = %q, want %q (all: %v)", field, fields[field], msg, fields)
				}
			}
		})
	}
}

func TestDecodeJSON_TooLarge(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{"email":"`+strings.Repeat("a", 256)+`"}`))
	req.Body = http.MaxBytesReader(rec, req.Body, 32)

	var dst decodeTarget
	err := DecodeJSON(req, "test.decode", &dst)
	if got := domain.ErrorCode(err); got != domain.ETOOLARGE {
		t.Errorf("code = %q, want %q", got, domain.ETOOLARGE)
	}
}
