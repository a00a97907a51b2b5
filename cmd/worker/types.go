package main

import (
	"context"

	"github.com/timothy-okoduwa/jojo-shop/internal/orders"
)

// PaymentConfirmer applies a gateway confirmation to an order. *service.Service implements it.
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, orderID string, ref orders.PaymentReference) (*orders.Order, error)
}

// Ledger closes the idempotency record the webhook opened. *idempotency.Store implements it.
type Ledger interface {
	MarkDone(ctx context.Context, key, responseBody string, responseStatus int) error
	MarkFailed(ctx context.Context, key, note string) error
}
