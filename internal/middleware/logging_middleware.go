package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/annel0/voxelgate/internal/logging"
)

// RequestLogger снабжает каждый HTTP-запрос trace-ID и пишет краткие логи.
type RequestLogger struct {
	logger *logging.Logger
}

func NewRequestLogger() *RequestLogger {
	return &RequestLogger{logger: logging.GetComponentLogger("api")}
}

func (rl *RequestLogger) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Span создаёт otelgin, если он стоит раньше в цепочке
		span := trace.SpanFromContext(c.Request.Context())
		var traceID string
		if span.SpanContext().IsValid() {
			traceID = span.SpanContext().TraceID().String()
		} else {
			traceID = uuid.NewString()
		}
		c.Set("trace_id", traceID)
		c.Header("X-Trace-Id", traceID)

		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		status := c.Writer.Status()
		l := rl.logger.With("trace", traceID, "ip", c.ClientIP())
		if status >= 500 {
			l.Warn("[HTTP] %s %s %d %s", c.Request.Method, path, status, time.Since(start))
			return
		}
		l.Debug("[HTTP] %s %s %d %s", c.Request.Method, path, status, time.Since(start))
	}
}
