// Package paystack talks to the Paystack payment gateway: transaction verification for
// client-reported payments and signature checks for webhooks.
package paystack

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/timothy-okoduwa/jojo-shop/internal/orders"
)

// DefaultBaseURL is the public Paystack API.
const DefaultBaseURL = "https://api.paystack.co"

// GatewayName is recorded on payment references confirmed through Paystack.
const GatewayName = "paystack"

// Client verifies transactions against the Paystack API.
type Client struct {
	baseURL    string
	secretKey  string
	HTTPClient *http.Client
	tracer     trace.Tracer
}

// NewClient returns a client. The http.Client carries no timeout of its own; every call is
// bounded by the context the caller passes in.
func NewClient(baseURL, secretKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		HTTPClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		tracer: otel.Tracer("paystack"),
	}
}

type verifyResponse struct {
	Status  bool        `json:"status"`
	Message string      `json:"message"`
	Data    *ChargeData `json:"data"`
}

// Verify fetches the transaction for reference and returns what the gateway attests. It fails
// with orders.ErrPaymentUnverified unless the transaction succeeded, and with
// orders.ErrGatewayUnavailable when the gateway cannot be reached or answers with a 5xx.
func (c *Client) Verify(ctx context.Context, reference string) (*orders.PaymentReference, error) {
	ctx, span := c.tracer.Start(ctx, "paystack.Verify", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("payment.reference", reference))

	endpoint := c.baseURL + "/transaction/verify/" + url.PathEscape(reference)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", orders.ErrGatewayUnavailable, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %v", orders.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: read body: %v", orders.ErrGatewayUnavailable, err)
	}

	if resp.StatusCode >= 500 {
		err := fmt.Errorf("%w: paystack returned %s", orders.ErrGatewayUnavailable, resp.Status)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var out verifyResponse
	if err := json.Unmarshal(body, &out); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: decode verify response: %v", orders.ErrGatewayUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK || !out.Status || out.Data == nil {
		err := fmt.Errorf("%w: reference %s: %s", orders.ErrPaymentUnverified, reference, out.Message)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if out.Data.Status != "success" {
		err := fmt.Errorf("%w: reference %s has status %q", orders.ErrPaymentUnverified, reference, out.Data.Status)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	ref := out.Data.PaymentReference()
	return &ref, nil
}
