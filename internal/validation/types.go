package validation

import (
	"time"

	"github.com/timothy-okoduwa/jojo-shop/internal/orders"
)

// OrderItem represents a single line in the cart at checkout.
type OrderItem struct {
	Product string       `json:"product" validate:"required"`   // product id
	Name    string       `json:"name" validate:"required"`      // display name at time of purchase
	Image   string       `json:"image,omitempty"`               // optional image url
	Price   orders.Money `json:"price" validate:"gte=0"`        // unit price
	Qty     int          `json:"qty" validate:"required,min=1"` // must be >= 1
}

// ShippingAddress is the delivery address entered at checkout.
type ShippingAddress struct {
	Address    string `json:"address" validate:"required"`
	City       string `json:"city" validate:"required"`
	PostalCode string `json:"postalCode" validate:"required"`
	Country    string `json:"country" validate:"required"`
}

// CreateOrderRequest is the payload for POST /api/orders
type CreateOrderRequest struct {
	OrderItems      []OrderItem     `json:"orderItems" validate:"required,min=1,dive"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string          `json:"paymentMethod" validate:"required"`
	ItemsPrice      orders.Money    `json:"itemsPrice" validate:"gte=0"`
	ShippingPrice   orders.Money    `json:"shippingPrice" validate:"gte=0"`
	TaxPrice        orders.Money    `json:"taxPrice" validate:"gte=0"`
	TotalPrice      orders.Money    `json:"totalPrice" validate:"gte=0"`
	Currency        string          `json:"currency,omitempty" validate:"omitempty,len=3,uppercase"`
}

// ToOrder converts the request into a new order owned by user.
func (r CreateOrderRequest) ToOrder(user orders.Customer) *orders.Order {
	items := make([]orders.LineItem, 0, len(r.OrderItems))
	for _, it := range r.OrderItems {
		items = append(items, orders.LineItem{
			ProductID: it.Product,
			Name:      it.Name,
			Image:     it.Image,
			Price:     it.Price,
			Qty:       it.Qty,
		})
	}
	return &orders.Order{
		User:  user,
		Items: items,
		ShippingAddress: orders.ShippingAddress{
			Address:    r.ShippingAddress.Address,
			City:       r.ShippingAddress.City,
			PostalCode: r.ShippingAddress.PostalCode,
			Country:    r.ShippingAddress.Country,
		},
		PaymentMethod: r.PaymentMethod,
		ItemsPrice:    r.ItemsPrice,
		ShippingPrice: r.ShippingPrice,
		TaxPrice:      r.TaxPrice,
		TotalPrice:    r.TotalPrice,
		Currency:      r.Currency,
		State:         orders.StateCreated,
	}
}

// PayOrderRequest is the payload for PUT /api/orders/:id/pay, sent by the checkout page after
// the payment widget reports success.
type PayOrderRequest struct {
	Reference  string       `json:"reference" validate:"required"`
	Amount     orders.Money `json:"amount" validate:"gte=0"`
	Currency   string       `json:"currency,omitempty" validate:"omitempty,len=3"`
	CapturedAt *time.Time   `json:"captured_at,omitempty"`
	Status     string       `json:"status,omitempty"`
}

// ToPaymentReference converts the request; CapturedAt defaults to now.
func (r PayOrderRequest) ToPaymentReference(now time.Time) orders.PaymentReference {
	captured := now.UTC()
	if r.CapturedAt != nil {
		captured = r.CapturedAt.UTC()
	}
	return orders.PaymentReference{
		ReferenceID:    r.Reference,
		AmountCaptured: r.Amount,
		Currency:       r.Currency,
		CapturedAt:     captured,
		Status:         r.Status,
	}
}
