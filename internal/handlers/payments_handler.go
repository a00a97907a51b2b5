package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	zlog "github.com/rs/zerolog/log"

	"github.com/timothy-okoduwa/jojo-shop/internal/events"
	"github.com/timothy-okoduwa/jojo-shop/internal/idempotency"
	"github.com/timothy-okoduwa/jojo-shop/internal/logging"
	"github.com/timothy-okoduwa/jojo-shop/internal/orders"
	"github.com/timothy-okoduwa/jojo-shop/internal/paystack"
	"github.com/timothy-okoduwa/jojo-shop/internal/service"
)

const maxWebhookBody = 1 << 20

// webhookLease is how long an IN_PROGRESS ledger record blocks resends before another delivery
// may take it over.
const webhookLease = 5 * time.Minute

// RegisterPaymentRoutes registers the payment widget config and the gateway webhook.
func RegisterPaymentRoutes(r *gin.Engine, cfg HandlerConfig) {
	r.GET("/api/config/paystack", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"publicKey": cfg.PaystackPublicKey})
	})

	r.POST("/api/payments/paystack/webhook", func(c *gin.Context) {
		handleWebhook(c, cfg)
	})
}

// handleWebhook answers 200 for everything the gateway should not resend (applied, duplicate,
// ignored, permanently rejected) and 5xx when a retry may succeed.
func handleWebhook(c *gin.Context, cfg HandlerConfig) {
	ctx := c.Request.Context()
	logger := zlog.Ctx(ctx)

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable_body"})
		return
	}
	if !paystack.VerifySignature(body, c.GetHeader(paystack.SignatureHeader), cfg.PaystackSecretKey) {
		logger.Warn().Msg("webhook signature mismatch")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_signature"})
		return
	}
	ev, err := paystack.ParseWebhook(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request_body", "msg": err.Error()})
		return
	}
	if ev.Event != paystack.EventChargeSuccess {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}
	orderID := ev.Data.OrderID()
	if orderID == "" || ev.Data.Reference == "" {
		logger.Warn().Str("reference", ev.Data.Reference).Msg("charge without order id metadata")
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	msg := events.PaymentConfirmation{
		OrderID:        orderID,
		IdempotencyKey: idempotency.Key(idempotency.ScopePaystack, ev.Data.Reference),
		CorrelationID:  c.Writer.Header().Get(logging.RequestIDHeader),
		Payment:        ev.Data.PaymentReference(),
	}
	if msg.Payment.CapturedAt.IsZero() {
		msg.Payment.CapturedAt = cfg.now().UTC()
	}

	proceed, err := acquire(ctx, cfg.Ledger, msg.IdempotencyKey, orderID, cfg.now())
	if err != nil {
		logger.Error().Err(err).Str("key", msg.IdempotencyKey).Msg("idempotency check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "idempotency_check_failed"})
		return
	}
	if !proceed {
		c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
		return
	}

	if cfg.Queue != nil {
		if err := cfg.Queue.SendJSON(ctx, msg, msg.Attributes()); err != nil {
			markFailed(ctx, cfg.Ledger, msg.IdempotencyKey, fmt.Sprintf("sqs_send_failed: %v", err))
			logger.Error().Err(err).Str("order_id", orderID).Msg("enqueue failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "enqueue_failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "queued"})
		return
	}

	_, err = cfg.Service.ConfirmPayment(ctx, orderID, msg.Payment)
	if err != nil && orders.Retryable(err) {
		markFailed(ctx, cfg.Ledger, msg.IdempotencyKey, err.Error())
		writeError(c, err)
		return
	}
	if err != nil {
		markDone(ctx, cfg.Ledger, msg.IdempotencyKey, service.ErrorKind(err), statusFor(err))
		logger.Error().Err(err).Str("order_id", orderID).Msg("webhook payment rejected")
		c.JSON(http.StatusOK, gin.H{"status": "rejected", "error": service.ErrorKind(err)})
		return
	}
	markDone(ctx, cfg.Ledger, msg.IdempotencyKey, "applied", http.StatusOK)
	c.JSON(http.StatusOK, gin.H{"status": "applied"})
}

// acquire claims key for this delivery. A FAILED earlier attempt is reclaimed, as is an
// IN_PROGRESS one untouched for webhookLease. Otherwise another delivery owns it.
func acquire(ctx context.Context, ledger WebhookLedger, key, orderID string, now time.Time) (bool, error) {
	if ledger == nil {
		return true, nil
	}
	created, err := ledger.CreateIfNotExists(ctx, key, orderID)
	if err != nil || created {
		return created, err
	}
	rec, err := ledger.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, nil
	}
	switch rec.Status {
	case idempotency.StatusFailed:
		return ledger.Reclaim(ctx, key)
	case idempotency.StatusInProgress:
		if now.Sub(rec.UpdatedAt) < webhookLease {
			return false, nil
		}
		zlog.Ctx(ctx).Warn().Str("key", key).Time("updated_at", rec.UpdatedAt).Msg("taking over stale idempotency record")
		return ledger.ReclaimStale(ctx, key, rec.UpdatedAt)
	default:
		return false, nil
	}
}

func markDone(ctx context.Context, ledger WebhookLedger, key, body string, status int) {
	if ledger == nil {
		return
	}
	if err := ledger.MarkDone(ctx, key, body, status); err != nil {
		zlog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("failed to mark idempotency done")
	}
}

func markFailed(ctx context.Context, ledger WebhookLedger, key, note string) {
	if ledger == nil {
		return
	}
	if err := ledger.MarkFailed(ctx, key, note); err != nil {
		zlog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("failed to mark idempotency failed")
	}
}
