package paystack

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timothy-okoduwa/jojo-shop/internal/orders"
)

func newGateway(t *testing.T, status int, body string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk_test" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"status":false,"message":"Invalid key"}`))
			return
		}
		if r.URL.Path != "/transaction/verify/T123" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"status":false,"message":"Transaction reference not found"}`))
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "sk_test")
}

func TestVerify_Success(t *testing.T) {
	c := newGateway(t, http.StatusOK, `{"status":true,"message":"Verification successful","data":{
		"reference":"T123","status":"success","amount":500000,"currency":"NGN",
		"paid_at":"2026-03-01T10:00:00.000Z","metadata":{"order_id":"order-1"}}}`)

	ref, err := c.Verify(context.Background(), "T123")
	require.NoError(t, err)
	assert.Equal(t, "T123", ref.ReferenceID)
	assert.Equal(t, orders.Money(500000), ref.AmountCaptured)
	assert.Equal(t, "NGN", ref.Currency)
	assert.Equal(t, GatewayName, ref.Gateway)
	assert.True(t, ref.CapturedAt.Equal(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)))
}

func TestVerify_Abandoned(t *testing.T) {
	c := newGateway(t, http.StatusOK, `{"status":true,"message":"Verification successful","data":{
		"reference":"T123","status":"abandoned","amount":500000,"currency":"NGN","paid_at":null}}`)

	_, err := c.Verify(context.Background(), "T123")
	require.ErrorIs(t, err, orders.ErrPaymentUnverified)
}

func TestVerify_UnknownReference(t *testing.T) {
	c := newGateway(t, http.StatusOK, `{}`)

	_, err := c.Verify(context.Background(), "nope")
	require.ErrorIs(t, err, orders.ErrPaymentUnverified)
}

func TestVerify_ServerError(t *testing.T) {
	c := newGateway(t, http.StatusBadGateway, `upstream`)

	_, err := c.Verify(context.Background(), "T123")
	require.ErrorIs(t, err, orders.ErrGatewayUnavailable)
	assert.True(t, orders.Retryable(err))
}

func TestVerify_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()
	c := NewClient(srv.URL, "sk_test")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Verify(ctx, "T123")
	require.ErrorIs(t, err, orders.ErrGatewayUnavailable)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
