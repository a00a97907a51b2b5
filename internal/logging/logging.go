package logging

import (
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/timothy-okoduwa/jojo-shop/internal/tracing"
)

// RequestIDHeader is echoed back on every response.
const RequestIDHeader = "X-Request-Id"

// Init configures the global logger. level falls back to info when it does not parse.
func Init(service, level string) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zlog.Logger = zerolog.New(os.Stdout).With().Timestamp().Str("service", service).Logger()
	// contexts without a request logger (worker, background calls) still log
	zerolog.DefaultContextLogger = &zlog.Logger
}

// Middleware stores a request scoped logger in the request context and logs
// one line per request. Handlers retrieve it with zlog.Ctx.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)

		lc := zlog.With().
			Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path)
		if traceID := tracing.TraceID(c.Request.Context()); traceID != "" {
			lc = lc.Str("trace_id", traceID)
		}
		logger := lc.Logger()
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context()))

		c.Next()

		status := c.Writer.Status()
		ev := logger.Info()
		if status >= 500 {
			ev = logger.Error()
		} else if status >= 400 {
			ev = logger.Warn()
		}
		ev.Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
