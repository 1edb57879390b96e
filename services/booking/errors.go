package booking

import (
	"errors"
	"fmt"
)

// Error codes for booking failures surfaced to callers.
const (
	CodeServiceNotBookable       = "serviceNotBookable"
	CodeOutsideBookingWindow     = "outsideBookingWindow"
	CodeSlotUnavailable          = "slotUnavailable"
	CodeCancellationWindowClosed = "cancellationWindowClosed"
	CodeNotAllowed               = "notAllowed"
	CodeInvalidTransition        = "invalidTransition"
)

type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewError(code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// HasCode reports whether err is a booking Error carrying the given code.
func HasCode(err error, code string) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.Code == code
	}
	return false
}
