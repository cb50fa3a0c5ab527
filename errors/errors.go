package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Stable machine-readable error codes. Controllers return these verbatim so
// clients can branch on them without parsing messages.
const (
	CodeInsufficientStock   = "INSUFFICIENT_STOCK"
	CodeProductNotFound     = "PRODUCT_NOT_FOUND"
	CodeOrderNotFound       = "ORDER_NOT_FOUND"
	CodeCustomerNotFound    = "CUSTOMER_NOT_FOUND"
	CodeCustomerIneligible  = "CUSTOMER_INELIGIBLE"
	CodeInvalidTransition   = "INVALID_TRANSITION"
	CodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
	CodeValidation          = "VALIDATION_ERROR"
	CodeInternal            = "INTERNAL_ERROR"
)

// Error is a typed application error with an HTTP status code.
type Error struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error.
func New(status int, code, message string, err error) *Error {
	return &Error{StatusCode: status, Code: code, Message: message, Err: err}
}

// Is matches on the stable code so wrapped copies compare equal.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// CodeOf returns the stable code of err, or CodeInternal for untyped errors.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

func InsufficientStock(productID string, requested, available int) *Error {
	return &Error{
		StatusCode: http.StatusConflict,
		Code:       CodeInsufficientStock,
		Message:    fmt.Sprintf("insufficient stock for product %s: requested=%d available=%d", productID, requested, available),
	}
}

func ProductNotFound(productID string) *Error {
	return &Error{
		StatusCode: http.StatusNotFound,
		Code:       CodeProductNotFound,
		Message:    fmt.Sprintf("product not found: %s", productID),
	}
}

func OrderNotFound(orderID string) *Error {
	return &Error{
		StatusCode: http.StatusNotFound,
		Code:       CodeOrderNotFound,
		Message:    fmt.Sprintf("order not found: %s", orderID),
	}
}

func CustomerNotFound(customerID string) *Error {
	return &Error{
		StatusCode: http.StatusNotFound,
		Code:       CodeCustomerNotFound,
		Message:    fmt.Sprintf("customer not found: %s", customerID),
	}
}

func CustomerIneligible(customerID, reason string) *Error {
	return &Error{
		StatusCode: http.StatusForbidden,
		Code:       CodeCustomerIneligible,
		Message:    fmt.Sprintf("customer %s cannot place orders: %s", customerID, reason),
	}
}

func InvalidTransition(from, to string) *Error {
	return &Error{
		StatusCode: http.StatusUnprocessableEntity,
		Code:       CodeInvalidTransition,
		Message:    fmt.Sprintf("cannot transition order from %s to %s", from, to),
	}
}

func ConcurrencyConflict(entity, id string) *Error {
	return &Error{
		StatusCode: http.StatusConflict,
		Code:       CodeConcurrencyConflict,
		Message:    fmt.Sprintf("concurrent update detected on %s %s, retry the operation", entity, id),
	}
}

func Validation(message string) *Error {
	return &Error{
		StatusCode: http.StatusBadRequest,
		Code:       CodeValidation,
		Message:    message,
	}
}

func Internal(message string, err error) *Error {
	return &Error{
		StatusCode: http.StatusInternalServerError,
		Code:       CodeInternal,
		Message:    message,
		Err:        err,
	}
}
