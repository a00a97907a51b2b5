package orders

import (
	"context"
	"errors"
)

// Error kinds surfaced by the order lifecycle. Callers classify with errors.Is.
var (
	ErrNotFound          = errors.New("order not found")
	ErrUnauthorized      = errors.New("actor is not an administrator")
	ErrPaymentRequired   = errors.New("order has not been paid")
	ErrAmountMismatch    = errors.New("captured amount does not match order total")
	ErrInvalidTransition = errors.New("invalid order state")
	ErrPersistence       = errors.New("order persistence failed")

	ErrPaymentUnverified  = errors.New("payment not confirmed by gateway")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrInvalidOrder       = errors.New("invalid order")
	ErrInvalidPayment     = errors.New("invalid payment reference")

	// ErrVersionConflict is returned by stores when a conditional write lost a race.
	ErrVersionConflict = errors.New("order version conflict")
	// ErrDuplicateOrder is returned when an order id already exists.
	ErrDuplicateOrder = errors.New("order already exists")
)

// Retryable reports whether resubmitting the whole operation may succeed.
func Retryable(err error) bool {
	return errors.Is(err, ErrPersistence) ||
		errors.Is(err, ErrGatewayUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}
