package handlers

import (
	"context"
	"time"

	"github.com/timothy-okoduwa/jojo-shop/internal/idempotency"
	"github.com/timothy-okoduwa/jojo-shop/internal/orders"
)

// OrderService is the lifecycle API the routes call.
type OrderService interface {
	GetOrder(ctx context.Context, orderID string) (*orders.Order, error)
	CreateOrder(ctx context.Context, idempotencyKey string, o *orders.Order) (*orders.Order, bool, error)
	ConfirmPayment(ctx context.Context, orderID string, ref orders.PaymentReference) (*orders.Order, error)
	ConfirmDelivery(ctx context.Context, orderID string, actor orders.Actor) (*orders.Order, error)
}

// WebhookLedger de-duplicates gateway callbacks. *idempotency.Store implements it.
type WebhookLedger interface {
	CreateIfNotExists(ctx context.Context, key, orderID string) (bool, error)
	Get(ctx context.Context, key string) (*idempotency.Record, error)
	Reclaim(ctx context.Context, key string) (bool, error)
	ReclaimStale(ctx context.Context, key string, seen time.Time) (bool, error)
	MarkDone(ctx context.Context, key, responseBody string, responseStatus int) error
	MarkFailed(ctx context.Context, key, note string) error
}

// Enqueuer hands a message to the worker queue. *aws.Publisher implements it.
type Enqueuer interface {
	SendJSON(ctx context.Context, payload any, attributes map[string]string) error
}

// HandlerConfig groups dependencies for the HTTP handlers.
type HandlerConfig struct {
	Service OrderService
	// Ledger and Queue are optional. Without a queue, webhook confirmations are applied inline.
	Ledger            WebhookLedger
	Queue             Enqueuer
	PaystackPublicKey string
	PaystackSecretKey string
	Now               func() time.Time
}

func (cfg HandlerConfig) now() time.Time {
	if cfg.Now != nil {
		return cfg.Now()
	}
	return time.Now()
}
