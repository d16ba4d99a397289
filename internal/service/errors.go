package service

import (
	"github.com/dukerupert/storefront/internal/domain"
)

// Product errors
var (
	ErrProductNotFound   = domain.Errorf(domain.ENOTFOUND, "", "Product not found")
	ErrInsufficientStock = domain.Errorf(domain.EINVALID, "", "Insufficient stock")
	ErrInvalidQuantity   = domain.Errorf(domain.EINVALID, "", "Quantity must be greater than 0")

	ErrStockWouldGoBelow error = &domain.ValidationError{
		Op:     "product.adjust_stock",
		Fields: map[string]string{"delta": "Stock adjustment would make stock negative"},
	}
)

// Order errors
var (
	ErrOrderNotFound       = domain.Errorf(domain.ENOTFOUND, "", "Order not found")
	ErrOrderTerminal       = domain.Errorf(domain.ECONFLICT, "", "Order status can no longer be changed")
	ErrOrderNotPayable     = domain.Errorf(domain.ECONFLICT, "", "Order is no longer awaiting payment")
	ErrOrderNotCardPayment = domain.Errorf(domain.EINVALID, "", "Order is not paid by card")
)

// Payment errors
var (
	ErrPaymentIntentCreationFailed = domain.Errorf(domain.EEXTERNAL, "", "Failed to create payment intent")
	ErrPaymentIntentNotFound       = domain.Errorf(domain.ENOTFOUND, "", "Payment intent not found")
	ErrPaymentStatusUnavailable    = domain.Errorf(domain.EEXTERNAL, "", "Failed to retrieve payment status")
	ErrOrderNotPaid                = domain.Errorf(domain.EINVALID, "", "Only paid orders can be refunded")
	ErrRefundExceedsTotal          = domain.Errorf(domain.EINVALID, "", "Refund amount exceeds order total")
	ErrRefundFailed                = domain.Errorf(domain.EEXTERNAL, "", "Failed to process refund")
	ErrInvalidRefundReason         = domain.Errorf(domain.EINVALID, "", "Invalid refund reason")
)

// Webhook errors
var (
	ErrInvalidWebhookSignature = domain.Errorf(domain.EINVALID, "", "Invalid signature")
	ErrInvalidWebhookPayload   = domain.Errorf(domain.EINVALID, "", "Invalid webhook payload")
)

// opError returns an error carrying sentinel's code and message, tagged
// with op, that matches both sentinel and cause under errors.Is.
func opError(sentinel error, op string, cause error) error {
	e, ok := sentinel.(*domain.Error)
	if !ok {
		return domain.WrapError(sentinel, domain.EINTERNAL, op, "unexpected error")
	}
	wrapped := &domain.Error{Code: e.Code, Op: op, Message: e.Message, Err: sentinel}
	if cause != nil {
		wrapped.Err = &causeError{sentinel: sentinel, cause: cause}
	}
	return wrapped
}

// causeError chains a sentinel with the error that triggered it.
type causeError struct {
	sentinel error
	cause    error
}

func (e *causeError) Error() string { return e.cause.Error() }

func (e *causeError) Unwrap() []error { return []error{e.sentinel, e.cause} }
