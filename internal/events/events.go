package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/timothy-okoduwa/jojo-shop/internal/orders"
)

// Event types emitted on lifecycle transitions.
const (
	TypeOrderPaid      = "order.paid"
	TypeOrderDelivered = "order.delivered"
)

// Event is the notification published after a transition has been persisted.
type Event struct {
	ID         string    `json:"event_id"`
	Type       string    `json:"type"`
	OrderID    string    `json:"order_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    Payload   `json:"payload"`
}

// Payload carries the fields downstream consumers (mailers, fulfilment) need.
type Payload struct {
	State            orders.State `json:"state"`
	TotalPrice       orders.Money `json:"total_price"`
	Currency         string       `json:"currency"`
	CustomerEmail    string       `json:"customer_email,omitempty"`
	PaymentReference string       `json:"payment_reference,omitempty"`
	PaidAt           *time.Time   `json:"paid_at,omitempty"`
	DeliveredAt      *time.Time   `json:"delivered_at,omitempty"`
	DeliveredBy      string       `json:"delivered_by,omitempty"`
}

// New builds an event of type for the persisted order o.
func New(eventType string, o *orders.Order) Event {
	p := Payload{
		State:         o.State,
		TotalPrice:    o.TotalPrice,
		Currency:      o.Currency,
		CustomerEmail: o.User.Email,
		PaidAt:        o.PaidAt,
		DeliveredAt:   o.DeliveredAt,
		DeliveredBy:   o.DeliveredBy,
	}
	if o.PaymentResult != nil {
		p.PaymentReference = o.PaymentResult.ReferenceID
	}
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OrderID:    o.ID,
		OccurredAt: o.UpdatedAt,
		Payload:    p,
	}
}

// Publisher delivers events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Discard drops every event. Used when EVENTS_BACKEND=none.
type Discard struct{}

func (Discard) Publish(context.Context, Event) error { return nil }
