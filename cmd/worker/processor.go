package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	zlog "github.com/rs/zerolog/log"

	orderevents "github.com/timothy-okoduwa/jojo-shop/internal/events"
	"github.com/timothy-okoduwa/jojo-shop/internal/orders"
	"github.com/timothy-okoduwa/jojo-shop/internal/service"
)

// errPermanent marks a message that will never succeed, however often it is redelivered.
var errPermanent = errors.New("permanent failure")

// Processor applies queued payment confirmations.
type Processor struct {
	svc    PaymentConfirmer
	ledger Ledger
}

// NewProcessor creates a worker processor. ledger may be nil.
func NewProcessor(svc PaymentConfirmer, ledger Ledger) *Processor {
	return &Processor{svc: svc, ledger: ledger}
}

// Handle processes an SQS batch. Messages that may succeed on redelivery are reported as
// batch item failures so only they return to the queue; permanent failures are logged and
// dropped.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, rec := range ev.Records {
		logger := zlog.With().Str("message_id", rec.MessageId).Logger()
		mctx := logger.WithContext(ctx)

		err := p.processMessage(mctx, rec)
		switch {
		case err == nil:
		case errors.Is(err, errPermanent):
			logger.Error().Err(err).Msg("dropping message")
		default:
			logger.Warn().Err(err).Msg("message will be retried")
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: rec.MessageId})
		}
	}
	return resp, nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var msg orderevents.PaymentConfirmation
	if err := json.Unmarshal([]byte(rec.Body), &msg); err != nil {
		return fmt.Errorf("%w: invalid message body: %v", errPermanent, err)
	}
	if msg.OrderID == "" {
		return fmt.Errorf("%w: message without order id", errPermanent)
	}

	logger := zlog.Ctx(ctx).With().
		Str("order_id", msg.OrderID).
		Str("reference", msg.Payment.ReferenceID).
		Str("correlation_id", msg.CorrelationID).
		Logger()
	ctx = logger.WithContext(ctx)
	logger.Info().Msg("applying payment confirmation")

	o, err := p.svc.ConfirmPayment(ctx, msg.OrderID, msg.Payment)
	switch {
	case err == nil:
		p.markDone(ctx, msg.IdempotencyKey, "applied", http.StatusOK)
		logger.Info().Str("state", string(o.State)).Msg("payment confirmation applied")
		return nil
	case orders.Retryable(err):
		p.markFailed(ctx, msg.IdempotencyKey, err.Error())
		return err
	default:
		p.markDone(ctx, msg.IdempotencyKey, service.ErrorKind(err), http.StatusUnprocessableEntity)
		return fmt.Errorf("%w: %w", errPermanent, err)
	}
}

func (p *Processor) markDone(ctx context.Context, key, body string, status int) {
	if p.ledger == nil || key == "" {
		return
	}
	if err := p.ledger.MarkDone(ctx, key, body, status); err != nil {
		zlog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("failed to mark idempotency done")
	}
}

func (p *Processor) markFailed(ctx context.Context, key, note string) {
	if p.ledger == nil || key == "" {
		return
	}
	if err := p.ledger.MarkFailed(ctx, key, note); err != nil {
		zlog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("failed to mark idempotency failed")
	}
}
