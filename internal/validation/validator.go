package validation

import (
	"fmt"
	"reflect"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/timothy-okoduwa/jojo-shop/internal/orders"
)

// New returns a configured validator with custom struct-level validation registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// report fields under the names clients send
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	// the totals a client submits must add up, in minor units, before an order is stored
	v.RegisterStructValidation(createOrderStructValidation, CreateOrderRequest{})

	return v
}

// createOrderStructValidation checks itemsPrice == sum(price*qty) and
// totalPrice == itemsPrice + shippingPrice + taxPrice.
func createOrderStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(CreateOrderRequest)

	var sum orders.Money
	for _, it := range req.OrderItems {
		sum += it.Price * orders.Money(it.Qty)
	}
	if sum != req.ItemsPrice {
		sl.ReportError(req.ItemsPrice, "itemsPrice", "ItemsPrice", "items_price_match",
			fmt.Sprintf("items sum %s != itemsPrice %s", sum, req.ItemsPrice))
	}

	total := req.ItemsPrice + req.ShippingPrice + req.TaxPrice
	if total != req.TotalPrice {
		sl.ReportError(req.TotalPrice, "totalPrice", "TotalPrice", "total_price_match",
			fmt.Sprintf("items + shipping + tax %s != totalPrice %s", total, req.TotalPrice))
	}
}
