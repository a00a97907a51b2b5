package handlers

import (
	"time"

	"github.com/timothy-okoduwa/jojo-shop/internal/orders"
)

// OrderView is the JSON snapshot returned by every order endpoint. isPaid and isDelivered are
// derived from the state, never stored.
type OrderView struct {
	ID              string                   `json:"id"`
	User            orders.Customer          `json:"user"`
	OrderItems      []orders.LineItem        `json:"orderItems"`
	ShippingAddress orders.ShippingAddress   `json:"shippingAddress"`
	PaymentMethod   string                   `json:"paymentMethod"`
	ItemsPrice      orders.Money             `json:"itemsPrice"`
	ShippingPrice   orders.Money             `json:"shippingPrice"`
	TaxPrice        orders.Money             `json:"taxPrice"`
	TotalPrice      orders.Money             `json:"totalPrice"`
	Currency        string                   `json:"currency"`
	State           orders.State             `json:"state"`
	IsPaid          bool                     `json:"isPaid"`
	PaidAt          *time.Time               `json:"paidAt,omitempty"`
	PaymentResult   *orders.PaymentReference `json:"paymentResult,omitempty"`
	IsDelivered     bool                     `json:"isDelivered"`
	DeliveredAt     *time.Time               `json:"deliveredAt,omitempty"`
	DeliveredBy     string                   `json:"deliveredBy,omitempty"`
	Version         int64                    `json:"version"`
	CreatedAt       time.Time                `json:"createdAt"`
	UpdatedAt       time.Time                `json:"updatedAt"`
}

func viewOf(o *orders.Order) OrderView {
	return OrderView{
		ID:              o.ID,
		User:            o.User,
		OrderItems:      o.Items,
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   o.PaymentMethod,
		ItemsPrice:      o.ItemsPrice,
		ShippingPrice:   o.ShippingPrice,
		TaxPrice:        o.TaxPrice,
		TotalPrice:      o.TotalPrice,
		Currency:        o.Currency,
		State:           o.State,
		IsPaid:          o.IsPaid(),
		PaidAt:          o.PaidAt,
		PaymentResult:   o.PaymentResult,
		IsDelivered:     o.IsDelivered(),
		DeliveredAt:     o.DeliveredAt,
		DeliveredBy:     o.DeliveredBy,
		Version:         o.Version,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}
