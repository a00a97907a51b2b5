package paystack

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/timothy-okoduwa/jojo-shop/internal/orders"
)

// SignatureHeader carries the HMAC-SHA512 of the raw webhook body keyed by the secret key.
const SignatureHeader = "X-Paystack-Signature"

// EventChargeSuccess is the only webhook event that confirms a payment.
const EventChargeSuccess = "charge.success"

// ChargeData is the transaction object shared by the verify endpoint and webhooks.
// Amount is in the currency's minor unit (kobo for NGN).
type ChargeData struct {
	Reference string          `json:"reference"`
	Status    string          `json:"status"`
	Amount    int64           `json:"amount"`
	Currency  string          `json:"currency"`
	PaidAt    *time.Time      `json:"paid_at"`
	Metadata  json.RawMessage `json:"metadata"`
}

// PaymentReference converts the charge into the record kept on the order.
func (d ChargeData) PaymentReference() orders.PaymentReference {
	ref := orders.PaymentReference{
		ReferenceID:    d.Reference,
		AmountCaptured: orders.Money(d.Amount),
		Currency:       d.Currency,
		Status:         d.Status,
		Gateway:        GatewayName,
	}
	if d.PaidAt != nil {
		ref.CapturedAt = d.PaidAt.UTC()
	}
	return ref
}

// OrderID returns metadata.order_id, set by the checkout page when the charge was started.
// Paystack sends metadata as an object, or as an empty string when none was attached.
func (d ChargeData) OrderID() string {
	var md struct {
		OrderID any `json:"order_id"`
	}
	if len(d.Metadata) == 0 || json.Unmarshal(d.Metadata, &md) != nil {
		return ""
	}
	switch v := md.OrderID.(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	}
	return ""
}

// WebhookEvent is the envelope Paystack posts to the webhook URL.
type WebhookEvent struct {
	Event string     `json:"event"`
	Data  ChargeData `json:"data"`
}

// ParseWebhook decodes a webhook body. Signature checking is separate; see VerifySignature.
func ParseWebhook(body []byte) (*WebhookEvent, error) {
	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("decode webhook: %w", err)
	}
	return &ev, nil
}

// VerifySignature reports whether signature is the hex HMAC-SHA512 of body under secret.
func VerifySignature(body []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// Sign computes the signature Paystack would send for body. Used by tests and local tooling.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
