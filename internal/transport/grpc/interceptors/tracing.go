package interceptors

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/stats"
)

// TracingOptions customises the server-side OpenTelemetry instrumentation.
type TracingOptions struct {
	TracerProvider trace.TracerProvider
	Propagators    propagation.TextMapPropagator
	Additional     []otelgrpc.Option
}

// NewTracingHandler builds the otelgrpc stats handler. It covers unary and
// streaming calls alike.
func NewTracingHandler(opts TracingOptions) stats.Handler {
	options := make([]otelgrpc.Option, 0, len(opts.Additional)+2)
	if opts.TracerProvider != nil {
		options = append(options, otelgrpc.WithTracerProvider(opts.TracerProvider))
	}
	if opts.Propagators != nil {
		options = append(options, otelgrpc.WithPropagators(opts.Propagators))
	}
	options = append(options, opts.Additional...)
	return otelgrpc.NewServerHandler(options...)
}

// TracingServerOption installs the tracing handler on a grpc.Server.
func TracingServerOption(opts TracingOptions) grpc.ServerOption {
	return grpc.StatsHandler(NewTracingHandler(opts))
}
