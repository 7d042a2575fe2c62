package services

import (
	"errors"
	"fmt"
	"net/http"
)

// ServiceError is a typed error carrying the HTTP status and a stable code
// for clients. Two ServiceErrors match under errors.Is when their codes match.
type ServiceError struct {
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	var t *ServiceError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// with returns a copy of e with a specific message and cause.
func (e *ServiceError) with(message string, err error) *ServiceError {
	out := *e
	if message != "" {
		out.Message = message
	}
	out.Err = err
	return &out
}

var (
	ErrValidation             = &ServiceError{StatusCode: http.StatusBadRequest, Code: "validation_error", Message: "Invalid request"}
	ErrProductNotFound        = &ServiceError{StatusCode: http.StatusNotFound, Code: "product_not_found", Message: "Product not found"}
	ErrInvalidColorVariant    = &ServiceError{StatusCode: http.StatusUnprocessableEntity, Code: "invalid_color_variant", Message: "Invalid color variant"}
	ErrInsufficientStock      = &ServiceError{StatusCode: http.StatusConflict, Code: "insufficient_stock", Message: "Insufficient stock"}
	ErrUnauthorized           = &ServiceError{StatusCode: http.StatusForbidden, Code: "unauthorized", Message: "Not allowed to access this order"}
	ErrOrderNotFound          = &ServiceError{StatusCode: http.StatusNotFound, Code: "not_found", Message: "Order not found"}
	ErrCancellationNotAllowed = &ServiceError{StatusCode: http.StatusConflict, Code: "cancellation_not_allowed", Message: "Order can no longer be canceled"}
	ErrInvalidTransition      = &ServiceError{StatusCode: http.StatusConflict, Code: "invalid_transition", Message: "Order status transition not allowed"}
	ErrTotalMismatch          = &ServiceError{StatusCode: http.StatusConflict, Code: "total_mismatch", Message: "Order total could not be verified"}
	ErrPaymentProvider        = &ServiceError{StatusCode: http.StatusBadGateway, Code: "payment_provider_error", Message: "Payment could not be started, please try again"}
	ErrInvalidSignature       = &ServiceError{StatusCode: http.StatusBadRequest, Code: "invalid_signature", Message: "Invalid webhook signature"}
	ErrMetadataMissing        = &ServiceError{StatusCode: http.StatusBadRequest, Code: "metadata_missing", Message: "Payment event is missing order metadata"}
	ErrIdempotencyConflict    = &ServiceError{StatusCode: http.StatusConflict, Code: "idempotency_conflict", Message: "A request with this idempotency key is still in progress"}
	ErrInternal               = &ServiceError{StatusCode: http.StatusInternalServerError, Code: "internal_error", Message: "Internal server error"}
)

// AsServiceError converts any error into a *ServiceError, defaulting to
// ErrInternal for untyped errors.
func AsServiceError(err error) *ServiceError {
	if err == nil {
		return nil
	}
	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}
	return ErrInternal.with("", err)
}
