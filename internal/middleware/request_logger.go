package middleware

import (
	"time"

	"autoparts/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const RequestIDHeader = "X-Request-ID"

// RequestLogger attaches a request-scoped log entry and logs the outcome of
// every request.
func RequestLogger(l *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)

		entry := l.WithFields(logrus.Fields{
			"requestId": requestID,
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
		})
		logger.Attach(c, entry)

		c.Next()

		status := c.Writer.Status()
		fields := logrus.Fields{
			"status":  status,
			"latency": time.Since(start).String(),
			"ip":      c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		done := entry.WithFields(fields)
		switch {
		case status >= 500:
			done.Error("request failed")
		case status >= 400:
			done.Warn("request rejected")
		default:
			done.Info("request handled")
		}
	}
}
