package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/kandyfoma/goshopperai-sub000/internal/infra/logger"
)

const (
	// TraceIDHeader carries the id echoed in every error body.
	TraceIDHeader = "X-Trace-ID"
	// RequestIDHeader carries the per-hop correlation id.
	RequestIDHeader = "X-Request-ID"

	TraceIDKey = "trace_id"
	UserIDKey  = "user_id"

	requestInfoKey = "request_info"
)

// RequestInfo is the request-scoped metadata read by the access log, the rate
// limiter and the auth middleware.
type RequestInfo struct {
	TraceID   string
	RequestID string
	UserID    string
	IP        string
	UserAgent string
}

// Correlation assigns the trace and request ids. An inbound X-Trace-ID wins,
// then an active OpenTelemetry span, then a fresh UUID.
func Correlation() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceIDHeader)
		if traceID == "" {
			if sc := trace.SpanContextFromContext(c.Request.Context()); sc.IsValid() {
				traceID = sc.TraceID().String()
			} else {
				traceID = uuid.NewString()
			}
		}
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Header(TraceIDHeader, traceID)
		c.Header(RequestIDHeader, requestID)
		c.Set(TraceIDKey, traceID)
		c.Set(requestInfoKey, &RequestInfo{
			TraceID:   traceID,
			RequestID: requestID,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), logger.RequestIDKey{}, requestID))

		c.Next()
	}
}

// GetTraceID returns the id set by Correlation, or "" outside it.
func GetTraceID(c *gin.Context) string {
	return c.GetString(TraceIDKey)
}

// GetRequestInfo never returns nil.
func GetRequestInfo(c *gin.Context) *RequestInfo {
	if v, ok := c.Get(requestInfoKey); ok {
		if info, ok := v.(*RequestInfo); ok {
			return info
		}
	}
	return &RequestInfo{TraceID: GetTraceID(c)}
}
