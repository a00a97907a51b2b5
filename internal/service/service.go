// Package service runs the order lifecycle operations: checkout, query, payment confirmation
// and delivery confirmation. Mutations are load, transition, conditional write; a write that
// loses a race is retried once from a fresh load.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/timothy-okoduwa/jojo-shop/internal/events"
	"github.com/timothy-okoduwa/jojo-shop/internal/metrics"
	"github.com/timothy-okoduwa/jojo-shop/internal/orders"
)

// Integrity signal names.
const (
	SignalAmountMismatch = "amount_mismatch"
	SignalCorruptState   = "corrupt_state"
)

// DefaultGatewayTimeout bounds a single gateway verification.
const DefaultGatewayTimeout = 10 * time.Second

// OrderStore is the durable order record. Get returns (nil, nil) when the order does not exist;
// Save returns orders.ErrVersionConflict when the stored version moved.
type OrderStore interface {
	Get(ctx context.Context, orderID string) (*orders.Order, error)
	Save(ctx context.Context, order *orders.Order) error
	Create(ctx context.Context, idempotencyKey string, order *orders.Order) (string, bool, error)
}

// Verifier asks the payment gateway what it actually captured for a reference.
type Verifier interface {
	Verify(ctx context.Context, reference string) (*orders.PaymentReference, error)
}

// SignalRecorder reports integrity signals to the alerting backend.
type SignalRecorder interface {
	Record(ctx context.Context, signal string) error
}

// Option configures a Service.
type Option func(*Service)

// WithVerifier re-verifies every payment reference against the gateway.
func WithVerifier(v Verifier) Option { return func(s *Service) { s.verifier = v } }

// WithEvents sets the publisher for lifecycle events.
func WithEvents(p events.Publisher) Option { return func(s *Service) { s.events = p } }

// WithSignals sets the integrity signal recorder.
func WithSignals(r SignalRecorder) Option { return func(s *Service) { s.signals = r } }

// WithMetrics sets the prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithGatewayTimeout bounds each gateway verification.
func WithGatewayTimeout(d time.Duration) Option { return func(s *Service) { s.gatewayTimeout = d } }

// WithCurrency sets the currency assigned to orders created without one.
func WithCurrency(c string) Option { return func(s *Service) { s.currency = c } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// Service implements the order lifecycle operations.
type Service struct {
	store          OrderStore
	authz          Authorizer
	verifier       Verifier
	events         events.Publisher
	signals        SignalRecorder
	metrics        *metrics.Metrics
	gatewayTimeout time.Duration
	currency       string
	now            func() time.Time
	tracer         trace.Tracer
}

// New returns a Service backed by store. authz decides who may confirm delivery.
func New(store OrderStore, authz Authorizer, opts ...Option) *Service {
	s := &Service{
		store:          store,
		authz:          authz,
		events:         events.Discard{},
		gatewayTimeout: DefaultGatewayTimeout,
		currency:       "NGN",
		now:            time.Now,
		tracer:         otel.Tracer("orders-service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.authz == nil {
		s.authz = StaticAdmins{}
	}
	return s
}

// GetOrder returns the current snapshot of an order.
func (s *Service) GetOrder(ctx context.Context, orderID string) (*orders.Order, error) {
	ctx, span := s.tracer.Start(ctx, "orders.GetOrder", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	o, err := s.load(ctx, orderID)
	if err != nil {
		endSpan(span, err)
		return nil, err
	}
	return o, nil
}

// CreateOrder places a new order in state CREATED. Replaying idempotencyKey returns the order
// created by the first request with created=false.
func (s *Service) CreateOrder(ctx context.Context, idempotencyKey string, o *orders.Order) (*orders.Order, bool, error) {
	ctx, span := s.tracer.Start(ctx, "orders.CreateOrder")
	defer span.End()

	if idempotencyKey == "" {
		return nil, false, fmt.Errorf("%w: missing idempotency key", orders.ErrInvalidOrder)
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Currency == "" {
		o.Currency = s.currency
	}
	o.State = orders.StateCreated
	o.PaidAt, o.PaymentResult, o.DeliveredAt, o.DeliveredBy = nil, nil, nil, ""
	span.SetAttributes(attribute.String("order.id", o.ID))

	orderID, created, err := s.store.Create(ctx, idempotencyKey, o)
	if err != nil {
		endSpan(span, err)
		if errors.Is(err, orders.ErrInvalidOrder) || errors.Is(err, orders.ErrDuplicateOrder) {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("%w: create order %s: %w", orders.ErrPersistence, o.ID, err)
	}
	if created {
		s.metrics.Transition("create", "applied")
		zlog.Ctx(ctx).Info().Str("order_id", orderID).Str("total", o.TotalPrice.String()).Msg("order created")
		return o, true, nil
	}

	s.metrics.Transition("create", "noop")
	existing, err := s.load(ctx, orderID)
	if err != nil {
		endSpan(span, err)
		return nil, false, err
	}
	return existing, false, nil
}

// ConfirmPayment records a captured payment for an order. A payment whose amount or currency
// differs from the order total fails with orders.ErrAmountMismatch and leaves the order as it
// was. Confirming an already paid order is a no-op returning the stored snapshot.
func (s *Service) ConfirmPayment(ctx context.Context, orderID string, ref orders.PaymentReference) (*orders.Order, error) {
	ctx, span := s.tracer.Start(ctx, "orders.ConfirmPayment", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("payment.reference", ref.ReferenceID),
	))
	defer span.End()

	o, err := s.confirmPayment(ctx, orderID, ref)
	s.metrics.Transition("pay", outcome(o, err))
	endSpan(span, err)
	return snapshot(o), err
}

func (s *Service) confirmPayment(ctx context.Context, orderID string, ref orders.PaymentReference) (*result, error) {
	if ref.ReferenceID == "" {
		return nil, fmt.Errorf("%w: missing reference id", orders.ErrInvalidPayment)
	}
	if s.verifier != nil {
		verified, err := s.verify(ctx, ref.ReferenceID)
		if err != nil {
			return nil, err
		}
		ref = *verified
	}
	if ref.Status != "" && !strings.EqualFold(ref.Status, "success") {
		return nil, fmt.Errorf("%w: reference %s has status %q", orders.ErrPaymentUnverified, ref.ReferenceID, ref.Status)
	}

	// Timestamps are stored at microsecond precision.
	confirmedAt := s.now().Truncate(time.Microsecond)
	return s.mutate(ctx, orderID, func(o orders.Order) (orders.Order, bool, error) {
		if err := s.checkAmount(ctx, &o, ref); err != nil {
			return o, false, err
		}
		return orders.ApplyPayment(o, ref, confirmedAt)
	}, events.TypeOrderPaid)
}

func (s *Service) verify(ctx context.Context, reference string) (*orders.PaymentReference, error) {
	vctx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	verified, err := s.verifier.Verify(vctx, reference)
	if err != nil {
		zlog.Ctx(ctx).Warn().Err(err).Str("reference", reference).Msg("gateway verification failed")
		return nil, err
	}
	return verified, nil
}

func (s *Service) checkAmount(ctx context.Context, o *orders.Order, ref orders.PaymentReference) error {
	currency := ref.Currency
	if currency == "" {
		currency = o.Currency
	}
	if ref.AmountCaptured == o.TotalPrice && strings.EqualFold(currency, o.Currency) {
		return nil
	}
	err := fmt.Errorf("%w: order %s total %s %s, captured %s %s",
		orders.ErrAmountMismatch, o.ID, o.TotalPrice, o.Currency, ref.AmountCaptured, currency)
	s.signal(ctx, SignalAmountMismatch, o.ID, err)
	return err
}

// ConfirmDelivery marks a paid order as delivered. The actor's administrator capability is
// resolved here and handed to the state machine; errors from it are returned unchanged.
func (s *Service) ConfirmDelivery(ctx context.Context, orderID string, actor orders.Actor) (*orders.Order, error) {
	ctx, span := s.tracer.Start(ctx, "orders.ConfirmDelivery", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("actor.id", actor.ID),
	))
	defer span.End()

	actor.IsAdmin = actor.ID != "" && s.authz.IsAdministrator(ctx, actor.ID)

	confirmedAt := s.now().Truncate(time.Microsecond)
	o, err := s.mutate(ctx, orderID, func(o orders.Order) (orders.Order, bool, error) {
		return orders.ApplyDelivery(o, confirmedAt, actor)
	}, events.TypeOrderDelivered)
	s.metrics.Transition("deliver", outcome(o, err))
	endSpan(span, err)
	return snapshot(o), err
}

type result struct {
	order   *orders.Order
	changed bool
}

type transition func(orders.Order) (orders.Order, bool, error)

// mutate runs load, apply, conditional save. A version conflict restarts the cycle once; the
// second attempt sees the winner's write and usually resolves as a no-op.
func (s *Service) mutate(ctx context.Context, orderID string, apply transition, eventType string) (*result, error) {
	const attempts = 2
	for attempt := 1; attempt <= attempts; attempt++ {
		current, err := s.load(ctx, orderID)
		if err != nil {
			return nil, err
		}

		next, changed, err := apply(*current)
		if err != nil {
			if errors.Is(err, orders.ErrInvalidTransition) {
				s.signal(ctx, SignalCorruptState, orderID, err)
			}
			return nil, err
		}
		if !changed {
			return &result{order: current}, nil
		}

		err = s.store.Save(ctx, &next)
		if errors.Is(err, orders.ErrVersionConflict) {
			zlog.Ctx(ctx).Info().Str("order_id", orderID).Int("attempt", attempt).Msg("order changed concurrently, reloading")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: save order %s: %w", orders.ErrPersistence, orderID, err)
		}

		zlog.Ctx(ctx).Info().Str("order_id", orderID).Str("state", string(next.State)).Msg("order transitioned")
		s.publish(ctx, eventType, &next)
		return &result{order: &next, changed: true}, nil
	}
	return nil, fmt.Errorf("%w: order %s: %w", orders.ErrPersistence, orderID, orders.ErrVersionConflict)
}

func (s *Service) load(ctx context.Context, orderID string) (*orders.Order, error) {
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: load order %s: %w", orders.ErrPersistence, orderID, err)
	}
	if o == nil {
		return nil, fmt.Errorf("%w: %s", orders.ErrNotFound, orderID)
	}
	return o, nil
}

// publish is best effort: the transition is already durable.
func (s *Service) publish(ctx context.Context, eventType string, o *orders.Order) {
	ev := events.New(eventType, o)
	if err := s.events.Publish(ctx, ev); err != nil {
		zlog.Ctx(ctx).Warn().Err(err).Str("order_id", o.ID).Str("event", eventType).Msg("failed to publish event")
	}
}

func (s *Service) signal(ctx context.Context, name, orderID string, cause error) {
	zlog.Ctx(ctx).Error().Err(cause).Str("order_id", orderID).Str("signal", name).Msg("integrity signal")
	s.metrics.IntegritySignal(name)
	if s.signals == nil {
		return
	}
	if err := s.signals.Record(ctx, name); err != nil {
		zlog.Ctx(ctx).Warn().Err(err).Str("signal", name).Msg("failed to record integrity signal")
	}
}

func snapshot(r *result) *orders.Order {
	if r == nil {
		return nil
	}
	return r.order
}

func outcome(r *result, err error) string {
	switch {
	case err == nil && r != nil && r.changed:
		return "applied"
	case err == nil:
		return "noop"
	}
	return ErrorKind(err)
}

// ErrorKind names the error class of err for metrics and logs.
func ErrorKind(err error) string {
	kinds := []struct {
		target error
		name   string
	}{
		{orders.ErrNotFound, "not_found"},
		{orders.ErrUnauthorized, "unauthorized"},
		{orders.ErrPaymentRequired, "payment_required"},
		{orders.ErrAmountMismatch, "amount_mismatch"},
		{orders.ErrInvalidTransition, "invalid_transition"},
		{orders.ErrPaymentUnverified, "payment_unverified"},
		{orders.ErrGatewayUnavailable, "gateway_unavailable"},
		{orders.ErrInvalidPayment, "invalid_payment"},
		{orders.ErrInvalidOrder, "invalid_order"},
		{orders.ErrDuplicateOrder, "duplicate_order"},
		{orders.ErrPersistence, "persistence"},
	}
	for _, k := range kinds {
		if errors.Is(err, k.target) {
			return k.name
		}
	}
	return "internal"
}

func endSpan(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, ErrorKind(err))
}
