package errors

import (
	"errors"
	"net/http"
)

// Domain errors
var (
	ErrNotFound         = errors.New("resource not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrDuplicateQuote   = errors.New("quote id already in use")
	ErrInvalidState     = errors.New("request is not in the expected status")
	ErrStaleStatus      = errors.New("status changed concurrently")
	ErrPaymentMismatch  = errors.New("payment does not satisfy the quote")
	ErrChainUnavailable = errors.New("chain oracle unavailable")
)

// AppError represents application error with HTTP status
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new app error
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common error constructors
func NotFound(message string) *AppError {
	return NewAppError(http.StatusNotFound, message, ErrNotFound)
}

func BadRequest(message string) *AppError {
	return NewAppError(http.StatusBadRequest, message, ErrInvalidInput)
}

func Unauthorized(message string) *AppError {
	return NewAppError(http.StatusUnauthorized, message, ErrUnauthorized)
}

func Forbidden(message string) *AppError {
	return NewAppError(http.StatusForbidden, message, ErrForbidden)
}

// Conflict signals a request arriving in a status other than the expected
// one; the message carries the current status so the caller can decide
// whether the work was already done.
func Conflict(message string) *AppError {
	return NewAppError(http.StatusConflict, message, ErrInvalidState)
}

// PaymentRequired signals a confirmed transaction that does not satisfy
// the recipient/amount/calldata contract of the quote.
func PaymentRequired(message string) *AppError {
	return NewAppError(http.StatusPaymentRequired, message, ErrPaymentMismatch)
}

// ServiceUnavailable signals a chain-oracle fault (timeout, unknown hash,
// revert). The request stays payable and the client may retry.
func ServiceUnavailable(message string) *AppError {
	return NewAppError(http.StatusServiceUnavailable, message, ErrChainUnavailable)
}

func InternalError(err error) *AppError {
	return NewAppError(http.StatusInternalServerError, "internal server error", err)
}

// NewError creates a new error with a custom message wrapping an existing error
func NewError(message string, err error) error {
	return &AppError{
		Code:    http.StatusBadRequest,
		Message: message,
		Err:     err,
	}
}
