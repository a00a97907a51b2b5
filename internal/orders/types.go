package orders

import (
	"fmt"
	"time"
)

// State is the lifecycle position of an order. Transitions only move forward:
// CREATED -> PAID -> DELIVERED.
type State string

const (
	StateCreated   State = "CREATED"
	StatePaid      State = "PAID"
	StateDelivered State = "DELIVERED"
)

// Customer is the owner of an order, captured at checkout.
type Customer struct {
	ID    string `dynamodbav:"id" json:"id"`
	Name  string `dynamodbav:"name" json:"name"`
	Email string `dynamodbav:"email" json:"email"`
}

// LineItem is a product snapshot taken when the order was placed.
type LineItem struct {
	ProductID string `dynamodbav:"product" json:"product"`
	Name      string `dynamodbav:"name" json:"name"`
	Image     string `dynamodbav:"image,omitempty" json:"image,omitempty"`
	Price     Money  `dynamodbav:"price" json:"price"`
	Qty       int    `dynamodbav:"qty" json:"qty"`
}

// ShippingAddress is where the order is delivered.
type ShippingAddress struct {
	Address    string `dynamodbav:"address" json:"address"`
	City       string `dynamodbav:"city" json:"city"`
	PostalCode string `dynamodbav:"postal_code" json:"postalCode"`
	Country    string `dynamodbav:"country" json:"country"`
}

// PaymentReference is what the payment gateway attests about a captured payment.
type PaymentReference struct {
	ReferenceID    string    `dynamodbav:"reference_id" json:"id"`
	AmountCaptured Money     `dynamodbav:"amount_captured" json:"amount"`
	Currency       string    `dynamodbav:"currency" json:"currency"`
	CapturedAt     time.Time `dynamodbav:"captured_at" json:"capturedAt"`
	Status         string    `dynamodbav:"status,omitempty" json:"status,omitempty"`
	Gateway        string    `dynamodbav:"gateway,omitempty" json:"gateway,omitempty"`
}

// Actor is the identity performing a mutation. IsAdmin is resolved by the caller from the
// authorization collaborator; the state machine never looks it up itself.
type Actor struct {
	ID      string
	Name    string
	Email   string
	IsAdmin bool
}

// Order represents the item stored in the orders table.
type Order struct {
	ID              string            `dynamodbav:"order_id"` // PK
	User            Customer          `dynamodbav:"user"`
	Items           []LineItem        `dynamodbav:"order_items"`
	ShippingAddress ShippingAddress   `dynamodbav:"shipping_address"`
	PaymentMethod   string            `dynamodbav:"payment_method"`
	ItemsPrice      Money             `dynamodbav:"items_price"`
	ShippingPrice   Money             `dynamodbav:"shipping_price"`
	TaxPrice        Money             `dynamodbav:"tax_price"`
	TotalPrice      Money             `dynamodbav:"total_price"`
	Currency        string            `dynamodbav:"currency"`
	State           State             `dynamodbav:"state"` // CREATED | PAID | DELIVERED
	PaidAt          *time.Time        `dynamodbav:"paid_at,omitempty"`
	PaymentResult   *PaymentReference `dynamodbav:"payment_result,omitempty"`
	DeliveredAt     *time.Time        `dynamodbav:"delivered_at,omitempty"`
	DeliveredBy     string            `dynamodbav:"delivered_by,omitempty"`
	Version         int64             `dynamodbav:"version"` // optimistic concurrency token
	CreatedAt       time.Time         `dynamodbav:"created_at"`
	UpdatedAt       time.Time         `dynamodbav:"updated_at"`
}

// IsPaid reports whether payment has been confirmed.
func (o *Order) IsPaid() bool {
	return o.State == StatePaid || o.State == StateDelivered
}

// IsDelivered reports whether delivery has been confirmed.
func (o *Order) IsDelivered() bool {
	return o.State == StateDelivered
}

// Validate checks the creation invariants. Pricing is write-once, so this only runs at checkout.
func (o *Order) Validate() error {
	if o.ID == "" {
		return fmt.Errorf("%w: missing order id", ErrInvalidOrder)
	}
	if o.User.ID == "" {
		return fmt.Errorf("%w: missing user", ErrInvalidOrder)
	}
	if len(o.Items) == 0 {
		return fmt.Errorf("%w: order must have at least one item", ErrInvalidOrder)
	}
	for i, it := range o.Items {
		if it.Qty < 1 {
			return fmt.Errorf("%w: item %d quantity must be positive", ErrInvalidOrder, i)
		}
		if it.Price < 0 {
			return fmt.Errorf("%w: item %d price must not be negative", ErrInvalidOrder, i)
		}
	}
	if o.ItemsPrice < 0 || o.ShippingPrice < 0 || o.TaxPrice < 0 {
		return fmt.Errorf("%w: prices must not be negative", ErrInvalidOrder)
	}
	if sum := o.ItemsPrice + o.ShippingPrice + o.TaxPrice; sum != o.TotalPrice {
		return fmt.Errorf("%w: total %s != items %s + shipping %s + tax %s",
			ErrInvalidOrder, o.TotalPrice, o.ItemsPrice, o.ShippingPrice, o.TaxPrice)
	}
	if o.State != StateCreated {
		return fmt.Errorf("%w: new orders start in %s, got %q", ErrInvalidOrder, StateCreated, o.State)
	}
	return nil
}

// CheckIntegrity verifies that the stored lifecycle fields agree with the state. A violation
// means the record was corrupted outside the state machine.
func (o *Order) CheckIntegrity() error {
	switch o.State {
	case StateCreated:
		if o.PaidAt != nil || o.PaymentResult != nil || o.DeliveredAt != nil {
			return fmt.Errorf("%w: order %s is %s but carries payment or delivery data", ErrInvalidTransition, o.ID, o.State)
		}
	case StatePaid:
		if o.PaidAt == nil || o.PaymentResult == nil {
			return fmt.Errorf("%w: order %s is %s without a payment record", ErrInvalidTransition, o.ID, o.State)
		}
		if o.DeliveredAt != nil {
			return fmt.Errorf("%w: order %s is %s but carries a delivery date", ErrInvalidTransition, o.ID, o.State)
		}
	case StateDelivered:
		if o.PaidAt == nil || o.PaymentResult == nil {
			return fmt.Errorf("%w: order %s delivered without payment", ErrInvalidTransition, o.ID)
		}
		if o.DeliveredAt == nil {
			return fmt.Errorf("%w: order %s is %s without a delivery date", ErrInvalidTransition, o.ID, o.State)
		}
	default:
		return fmt.Errorf("%w: order %s has unknown state %q", ErrInvalidTransition, o.ID, o.State)
	}
	return nil
}
