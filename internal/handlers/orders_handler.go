package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	zlog "github.com/rs/zerolog/log"

	"github.com/timothy-okoduwa/jojo-shop/internal/idempotency"
	"github.com/timothy-okoduwa/jojo-shop/internal/orders"
	"github.com/timothy-okoduwa/jojo-shop/internal/validation"
)

// RegisterOrdersRoutes registers routes for the order API.
func RegisterOrdersRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()
	svc := cfg.Service

	api := r.Group("/api/orders")

	api.POST("", func(c *gin.Context) {
		ctx := c.Request.Context()

		// Require idempotency key header
		idempKey := c.GetHeader("Idempotency-Key")
		if idempKey == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing_idempotency_key"})
			return
		}
		actor, ok := requireActor(c)
		if !ok {
			return
		}

		var req validation.CreateOrderRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			// BindAndValidate already wrote a 400
			return
		}

		order := req.ToOrder(orders.Customer{ID: actor.ID, Name: actor.Name, Email: actor.Email})
		// keys are per customer so one customer's key never resolves to another's order
		key := idempotency.Key(idempotency.ScopeCheckout, actor.ID+":"+idempKey)

		created, isNew, err := svc.CreateOrder(ctx, key, order)
		if err != nil {
			writeError(c, err)
			return
		}
		if !isNew {
			zlog.Ctx(ctx).Info().Str("order_id", created.ID).Msg("checkout replayed")
			c.JSON(http.StatusOK, viewOf(created))
			return
		}

		c.Header("Location", fmt.Sprintf("/api/orders/%s", created.ID))
		c.JSON(http.StatusCreated, viewOf(created))
	})

	api.GET("/:id", func(c *gin.Context) {
		o, err := svc.GetOrder(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, viewOf(o))
	})

	api.PUT("/:id/pay", func(c *gin.Context) {
		var req validation.PayOrderRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}

		o, err := svc.ConfirmPayment(c.Request.Context(), c.Param("id"), req.ToPaymentReference(cfg.now()))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, viewOf(o))
	})

	api.PUT("/:id/deliver", func(c *gin.Context) {
		actor, ok := requireActor(c)
		if !ok {
			return
		}

		o, err := svc.ConfirmDelivery(c.Request.Context(), c.Param("id"), actor)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, viewOf(o))
	})
}
