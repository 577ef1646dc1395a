package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/vladimiradmaev/dish-journal/internal/logger"
	"github.com/vladimiradmaev/dish-journal/internal/metrics"
)

const requestIDHeader = "X-Request-ID"

// requestLogger tags every request with a request id, carried in the request
// context logger and echoed in the response header.
func requestLogger(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)
		c.Request = c.Request.WithContext(logger.NewContext(c.Request.Context(), "request_id", requestID))

		c.Next()

		elapsed := time.Since(start)
		m.ObserveRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), elapsed)

		fields := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", elapsed.Milliseconds(),
		}
		if id := currentUser(c); id != 0 {
			fields = append(fields, "user_id", id)
		}
		log := logger.FromContext(c.Request.Context())
		if c.Writer.Status() >= 500 {
			log.Error("Request failed", fields...)
			return
		}
		log.Debug("Request handled", fields...)
	}
}
