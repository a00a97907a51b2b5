package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	zlog "github.com/rs/zerolog/log"

	"github.com/timothy-okoduwa/jojo-shop/internal/orders"
	"github.com/timothy-okoduwa/jojo-shop/internal/service"
)

var statusByError = []struct {
	target error
	status int
}{
	{orders.ErrNotFound, http.StatusNotFound},
	{orders.ErrUnauthorized, http.StatusForbidden},
	{orders.ErrPaymentRequired, http.StatusConflict},
	{orders.ErrDuplicateOrder, http.StatusConflict},
	{orders.ErrAmountMismatch, http.StatusUnprocessableEntity},
	{orders.ErrPaymentUnverified, http.StatusUnprocessableEntity},
	{orders.ErrInvalidPayment, http.StatusBadRequest},
	{orders.ErrInvalidOrder, http.StatusBadRequest},
	{orders.ErrGatewayUnavailable, http.StatusBadGateway},
	{orders.ErrPersistence, http.StatusServiceUnavailable},
	{context.DeadlineExceeded, http.StatusGatewayTimeout},
	{orders.ErrInvalidTransition, http.StatusInternalServerError},
}

// statusFor maps a lifecycle error onto an HTTP status.
func statusFor(err error) int {
	for _, s := range statusByError {
		if errors.Is(err, s.target) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	logger := zlog.Ctx(c.Request.Context())
	ev := logger.Warn()
	if status >= http.StatusInternalServerError {
		ev = logger.Error()
	}
	ev.Err(err).Int("status", status).Msg("request failed")

	c.JSON(status, gin.H{
		"error":   service.ErrorKind(err),
		"message": err.Error(),
	})
}
