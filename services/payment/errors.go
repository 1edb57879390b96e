package payment

import "errors"

// Error codes surfaced to handlers.
const (
	ErrCodeGatewayUnavailable  = "gatewayUnavailable"
	ErrCodePaymentNotFound     = "paymentNotFound"
	ErrCodeDuplicateCallback   = "duplicateCallback"
	ErrCodeConflictingCallback = "conflictingCallback"
)

// Error is a payment-flow error with a stable machine-readable code.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// NewError creates a payment error with the given code and message.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// HasCode reports whether err carries the given payment error code.
func HasCode(err error, code string) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}
