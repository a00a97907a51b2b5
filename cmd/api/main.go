package main

import (
	"context"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	zlog "github.com/rs/zerolog/log"

	"github.com/timothy-okoduwa/jojo-shop/internal/app"
	"github.com/timothy-okoduwa/jojo-shop/internal/config"
	"github.com/timothy-okoduwa/jojo-shop/internal/handlers"
	"github.com/timothy-okoduwa/jojo-shop/internal/logging"
	"github.com/timothy-okoduwa/jojo-shop/internal/metrics"
	"github.com/timothy-okoduwa/jojo-shop/internal/tracing"
)

func setupRouter(serviceName string, cfg handlers.HandlerConfig, m *metrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), tracing.Middleware(serviceName), logging.Middleware(), m.Middleware())

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	handlers.RegisterOrdersRoutes(r, cfg)
	handlers.RegisterPaymentRoutes(r, cfg)

	return r
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("invalid configuration")
	}
	logging.Init(cfg.ServiceName+"-api", cfg.LogLevel)

	ctx := context.Background()
	deps, err := app.Build(ctx, cfg, "api")
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to wire dependencies")
	}
	defer deps.Close(ctx)

	hcfg := handlers.HandlerConfig{
		Service:           deps.Service,
		PaystackPublicKey: cfg.PaystackPublicKey,
		PaystackSecretKey: cfg.PaystackSecretKey,
	}
	// assign only non-nil pointers so the interfaces stay nil
	if deps.Ledger != nil {
		hcfg.Ledger = deps.Ledger
	}
	if deps.Queue != nil {
		hcfg.Queue = deps.Queue
	}

	r := setupRouter(cfg.ServiceName+"-api", hcfg, deps.Metrics)

	// if RUN_LOCAL is set, run local HTTP server for development.
	if cfg.RunLocal {
		zlog.Info().Str("addr", cfg.ListenAddr).Msg("running local server")
		if err := r.Run(cfg.ListenAddr); err != nil {
			zlog.Fatal().Err(err).Msg("failed to run local server")
		}
		return
	}

	// lambda adapter
	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
