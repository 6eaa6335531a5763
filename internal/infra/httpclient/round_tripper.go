// Package httpclient builds outbound HTTP clients for gateway adapters.
package httpclient

import (
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/kandyfoma/goshopperai-sub000/internal/infra/logger"
)

// RequestIDHeader is forwarded on every outbound call.
const RequestIDHeader = "X-Request-ID"

// LoggingRoundTripper forwards the request id and logs each outbound call.
type LoggingRoundTripper struct {
	Transport http.RoundTripper
	Service   string
}

func NewLoggingRoundTripper(service string, transport http.RoundTripper) *LoggingRoundTripper {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &LoggingRoundTripper{Transport: transport, Service: service}
}

func (t *LoggingRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	ctx := r.Context()
	if id, ok := ctx.Value(logger.RequestIDKey{}).(string); ok && id != "" {
		r = r.Clone(ctx)
		r.Header.Set(RequestIDHeader, id)
	}

	start := time.Now()
	resp, err := t.Transport.RoundTrip(r)
	log := logger.WithContext(ctx).With(
		zap.String("upstream", t.Service),
		zap.String("method", r.Method),
		zap.String("url", r.URL.Redacted()),
		zap.Duration("latency", time.Since(start)),
	)
	if err != nil {
		log.Warn("outbound request failed", zap.Error(err))
		return nil, fmt.Errorf("round trip: %w", err)
	}
	log.Debug("outbound request", zap.Int("status", resp.StatusCode))
	return resp, nil
}

// New returns an *http.Client with the logging transport, wrapped in an
// otelhttp transport so outbound spans join the request trace.
func New(service string, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(NewLoggingRoundTripper(service, http.DefaultTransport)),
	}
}
