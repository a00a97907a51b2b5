// Package app assembles the order service from configuration. Both binaries share it.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	zlog "github.com/rs/zerolog/log"

	"github.com/timothy-okoduwa/jojo-shop/internal/aws"
	"github.com/timothy-okoduwa/jojo-shop/internal/config"
	"github.com/timothy-okoduwa/jojo-shop/internal/events"
	"github.com/timothy-okoduwa/jojo-shop/internal/idempotency"
	"github.com/timothy-okoduwa/jojo-shop/internal/metrics"
	"github.com/timothy-okoduwa/jojo-shop/internal/orders"
	"github.com/timothy-okoduwa/jojo-shop/internal/paystack"
	"github.com/timothy-okoduwa/jojo-shop/internal/service"
	"github.com/timothy-okoduwa/jojo-shop/internal/tracing"
)

// Deps is everything a binary needs to serve requests.
type Deps struct {
	Config  *config.Config
	Service *service.Service
	Metrics *metrics.Metrics
	// Ledger is nil unless the DynamoDB backend is in use.
	Ledger *idempotency.Store
	// Queue is nil when ORDERS_QUEUE_URL is unset.
	Queue *aws.Publisher

	closers []func(context.Context) error
}

// Build wires the configured backends. component names the binary in metrics and traces.
func Build(ctx context.Context, cfg *config.Config, component string) (*Deps, error) {
	d := &Deps{Config: cfg}

	tp, err := tracing.InitTracerProvider(cfg.ServiceName+"-"+component, cfg.JaegerEndpoint)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	d.closers = append(d.closers, tp.Shutdown)

	d.Metrics = metrics.New(prometheus.DefaultRegisterer, component)

	clients, err := aws.NewAWSClients(ctx)
	if err != nil {
		return nil, fmt.Errorf("init aws clients: %w", err)
	}

	store, err := d.buildStore(ctx, cfg, clients)
	if err != nil {
		d.Close(ctx)
		return nil, err
	}

	publisher, err := d.buildPublisher(cfg, clients)
	if err != nil {
		d.Close(ctx)
		return nil, err
	}

	if cfg.OrdersQueueURL != "" {
		d.Queue = aws.NewPublisher(clients.SQS, cfg.OrdersQueueURL)
	}

	opts := []service.Option{
		service.WithEvents(publisher),
		service.WithSignals(aws.NewSignalRecorder(clients.CloudWatch, cfg.MetricsNamespace)),
		service.WithMetrics(d.Metrics),
		service.WithGatewayTimeout(cfg.GatewayTimeout),
		service.WithCurrency(cfg.Currency),
	}
	if cfg.PaystackSecretKey != "" {
		opts = append(opts, service.WithVerifier(paystack.NewClient(cfg.PaystackBaseURL, cfg.PaystackSecretKey)))
	} else {
		zlog.Warn().Msg("PAYSTACK_SECRET_KEY not set, client payment reports are trusted without gateway verification")
	}

	d.Service = service.New(store, service.NewStaticAdmins(cfg.AdminIDs...), opts...)
	return d, nil
}

func (d *Deps) buildStore(ctx context.Context, cfg *config.Config, clients *aws.AWSClients) (service.OrderStore, error) {
	switch cfg.StoreBackend {
	case config.StorePostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		d.closers = append(d.closers, func(context.Context) error { pool.Close(); return nil })

		ps := orders.NewPostgresStore(pool)
		if err := ps.Migrate(ctx); err != nil {
			return nil, err
		}
		zlog.Info().Msg("using postgres order store")
		return ps, nil
	default:
		d.Ledger = idempotency.NewStore(clients.DynamoDB, cfg.IdempotencyTable, cfg.IdempotencyTTL)
		zlog.Info().Str("table", cfg.OrdersTable).Msg("using dynamodb order store")
		return orders.NewStore(clients.DynamoDB, cfg.OrdersTable, d.Ledger), nil
	}
}

func (d *Deps) buildPublisher(cfg *config.Config, clients *aws.AWSClients) (events.Publisher, error) {
	switch cfg.EventsBackend {
	case config.EventsSQS:
		return events.NewSQSPublisher(aws.NewPublisher(clients.SQS, cfg.EventsQueueURL)), nil
	case config.EventsKafka:
		kp := events.NewKafkaPublisher(events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic))
		d.closers = append(d.closers, func(context.Context) error { return kp.Close() })
		return kp, nil
	case config.EventsNone:
		return events.Discard{}, nil
	}
	return nil, fmt.Errorf("unknown events backend %q", cfg.EventsBackend)
}

// Close releases pools, writers and the tracer provider in reverse order.
func (d *Deps) Close(ctx context.Context) {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](ctx); err != nil {
			zlog.Warn().Err(err).Msg("shutdown")
		}
	}
	d.closers = nil
}
