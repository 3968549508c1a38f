package service

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Error kinds. Handlers map these to status codes with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidState      = errors.New("invalid state")
	ErrUnauthenticated   = errors.New("unauthenticated")
)

var (
	ErrUserNotFound     = fmt.Errorf("user %w", ErrNotFound)
	ErrProductNotFound  = fmt.Errorf("product %w", ErrNotFound)
	ErrOrderNotFound    = fmt.Errorf("order %w", ErrNotFound)
	ErrCartItemNotFound = fmt.Errorf("cart item %w", ErrNotFound)

	ErrUserAlreadyExists  = fmt.Errorf("phone number already registered: %w", ErrValidation)
	ErrInvalidCredentials = fmt.Errorf("incorrect phone or password: %w", ErrUnauthenticated)
	ErrEmptyOrder         = fmt.Errorf("order has no items: %w", ErrValidation)

	ErrForbidden         = fmt.Errorf("not authorized: %w", ErrInvalidState)
	ErrProductInactive   = fmt.Errorf("product is not active: %w", ErrInvalidState)
	ErrInvalidTransition = fmt.Errorf("status transition not allowed: %w", ErrInvalidState)
)

func validationError(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrValidation)
}

// checkMoney rejects amounts the NUMERIC(12,2) columns would round.
func checkMoney(field string, d decimal.Decimal) error {
	if !d.Equal(d.Round(2)) {
		return validationError(field + " must have at most two decimal places")
	}
	return nil
}
