package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appLogger "github.com/kandyfoma/goshopperai-sub000/internal/infra/logger"
)

// Logger writes one access log line per request. Server errors log at error
// level, throttled and rejected calls at warn.
func Logger(log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		info := GetRequestInfo(c)
		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		fields := []zap.Field{
			zap.String("trace_id", info.TraceID),
			zap.String("request_id", info.RequestID),
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", appLogger.MaskIP(info.IP)),
		}
		if info.UserID != "" {
			fields = append(fields, zap.String("user_id", info.UserID))
		}
		if tag, ok := GetLanguage(c); ok {
			fields = append(fields, zap.String("lang", tag.String()))
		}
		if retry := c.Writer.Header().Get("Retry-After"); retry != "" {
			fields = append(fields, zap.String("retry_after", retry))
		}

		switch {
		case status >= http.StatusInternalServerError || len(c.Errors) > 0:
			if len(c.Errors) > 0 {
				fields = append(fields, zap.String("errors", c.Errors.String()))
			}
			log.Error("request failed", fields...)
		case status == http.StatusTooManyRequests || status == http.StatusLocked:
			log.Warn("request throttled", fields...)
		default:
			log.Info("request completed", fields...)
		}
	}
}
