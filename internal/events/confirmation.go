package events

import "github.com/timothy-okoduwa/jojo-shop/internal/orders"

// PaymentConfirmation is the message the webhook queues for the worker: a gateway has reported
// a captured payment for an order.
type PaymentConfirmation struct {
	OrderID        string                  `json:"order_id"`
	IdempotencyKey string                  `json:"idempotency_key"`
	CorrelationID  string                  `json:"correlation_id,omitempty"`
	Payment        orders.PaymentReference `json:"payment"`
}

// Attributes returns the SQS message attributes sent alongside the body.
func (m PaymentConfirmation) Attributes() map[string]string {
	return map[string]string{
		"order_id":        m.OrderID,
		"idempotency_key": m.IdempotencyKey,
		"correlation_id":  m.CorrelationID,
	}
}
