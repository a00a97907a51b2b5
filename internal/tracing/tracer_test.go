package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestInitWithoutEndpoint(t *testing.T) {
	tp, err := InitTracerProvider("orders-test", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer tp.Shutdown(context.Background())

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	if TraceID(ctx) == "" {
		t.Fatalf("expected a trace id inside a span")
	}
	if TraceID(context.Background()) != "" {
		t.Fatalf("expected no trace id outside a span")
	}
}

func TestMiddlewareStartsServerSpan(t *testing.T) {
	tp, err := InitTracerProvider("orders-test", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer tp.Shutdown(context.Background())

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware("orders-test"))

	var traceID string
	r.GET("/api/orders/:id", func(c *gin.Context) {
		traceID = TraceID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/orders/o-1", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	r.ServeHTTP(httptest.NewRecorder(), req)

	if traceID != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Fatalf("expected propagated trace id, got %q", traceID)
	}
}
