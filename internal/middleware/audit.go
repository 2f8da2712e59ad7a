package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/tutoring-ledger-api/pkg/middleware/requestid"
)

// Audit writes one structured log line per successful mutation on the wrapped
// routes, naming the acting user and the affected resource.
func Audit(logger *zap.Logger, action, resource string) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	audit := logger.Named("audit")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if c.Writer.Status() >= 400 {
			return
		}

		actorID := ""
		if claims, ok := CurrentUser(c); ok {
			actorID = claims.UserID
		}
		audit.Info(action,
			zap.String("resource", resource),
			zap.String("resource_id", c.Param("id")),
			zap.String("lesson", c.Param("lesson")),
			zap.String("actor_id", actorID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Int64("latency_ms", time.Since(start).Milliseconds()),
			zap.String("ip", c.ClientIP()),
			zap.String("request_id", requestid.Value(c)),
		)
	}
}
