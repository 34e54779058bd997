package services

import (
	"errors"
	"fmt"
)

// Error taxonomy for the authorization engine. Validation and state errors
// surface to the caller as 4xx; gateway failures never escape the
// dispatcher, they become a terminal status on the record instead.
var (
	ErrValidation        = errors.New("validation error")
	ErrInvalidState      = errors.New("operation not allowed in current state")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotFound          = errors.New("record not found")
)

func validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
