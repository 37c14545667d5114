package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	loggerKey       = "logger"
	requestIDHeader = "X-Request-ID"
)

// requestLogger tags each request with an id and logs its outcome and latency.
func requestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		entry := log.WithField("request_id", id)
		c.Set(loggerKey, entry)

		c.Next()

		fields := logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}
		if u, ok := userFrom(c); ok {
			fields["user"] = u.ID
		}
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.WithFields(fields).Error("request completed")
		case status >= http.StatusBadRequest:
			entry.WithFields(fields).Warn("request completed")
		default:
			entry.WithFields(fields).Info("request completed")
		}
	}
}

// recoverer turns handler panics into a 500 envelope.
func recoverer() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		loggerFrom(c).WithField("panic", recovered).Error("handler panicked")
		fail(c, http.StatusInternalServerError, "internal error", nil)
	})
}
