package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	zlog "github.com/rs/zerolog/log"

	"github.com/timothy-okoduwa/jojo-shop/internal/app"
	"github.com/timothy-okoduwa/jojo-shop/internal/config"
	"github.com/timothy-okoduwa/jojo-shop/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("invalid configuration")
	}
	logging.Init(cfg.ServiceName+"-worker", cfg.LogLevel)

	ctx := context.Background()
	deps, err := app.Build(ctx, cfg, "worker")
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to wire dependencies")
	}
	defer deps.Close(ctx)

	var ledger Ledger
	if deps.Ledger != nil {
		ledger = deps.Ledger
	}
	p := NewProcessor(deps.Service, ledger)

	// If RUN_LOCAL=true, simulate a single SQS event for local testing.
	if cfg.RunLocal {
		testBody := os.Getenv("LOCAL_SQS_BODY")
		if testBody == "" {
			testBody = `{"order_id":"local-order-1","idempotency_key":"paystack:local-ref-1","payment":{"id":"local-ref-1","amount":5000.00,"currency":"NGN"}}`
		}
		event := events.SQSEvent{
			Records: []events.SQSMessage{
				{MessageId: "local-1", Body: testBody},
			},
		}
		resp, err := p.Handle(ctx, event)
		if err != nil {
			zlog.Fatal().Err(err).Msg("local handler error")
		}
		zlog.Info().Int("failures", len(resp.BatchItemFailures)).Msg("local run finished")
		return
	}

	lambda.Start(p.Handle)
}
