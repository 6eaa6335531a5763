package interceptors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// GRPCMetricsOptions controls construction of gRPC metrics collectors.
type GRPCMetricsOptions struct {
	Registerer prometheus.Registerer
	Namespace  string
	Subsystem  string
	Buckets    []float64
}

// GRPCMetrics wraps Prometheus collectors for unary and streaming calls.
type GRPCMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight *prometheus.GaugeVec
}

// NewGRPCMetrics constructs collectors and registers them with the supplied
// registerer. Collectors registered earlier under the same name are reused.
func NewGRPCMetrics(opts GRPCMetricsOptions) (*GRPCMetrics, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = "goshopper"
	}
	subsystem := opts.Subsystem
	if subsystem == "" {
		subsystem = "grpc"
	}
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	buckets := opts.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	requests, err := registerOrReuse(reg, "requests", prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "requests_total",
		Help:      "Total number of gRPC calls partitioned by kind, service, method, and status code.",
	}, []string{"kind", "service", "method", "code"}))
	if err != nil {
		return nil, err
	}

	duration, err := registerOrReuse(reg, "duration", prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request_duration_seconds",
		Help:      "gRPC call latencies in seconds partitioned by kind, service, method, and status code.",
		Buckets:   buckets,
	}, []string{"kind", "service", "method", "code"}))
	if err != nil {
		return nil, err
	}

	inFlight, err := registerOrReuse(reg, "inflight", prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "in_flight_requests",
		Help:      "Current number of in-flight gRPC calls partitioned by service.",
	}, []string{"service"}))
	if err != nil {
		return nil, err
	}

	return &GRPCMetrics{requests: requests, duration: duration, inFlight: inFlight}, nil
}

func registerOrReuse[C prometheus.Collector](reg prometheus.Registerer, name string, collector C) (C, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}
	var already prometheus.AlreadyRegisteredError
	if !errors.As(err, &already) {
		return collector, fmt.Errorf("register gRPC %s collector: %w", name, err)
	}
	existing, ok := already.ExistingCollector.(C)
	if !ok {
		return collector, fmt.Errorf("existing gRPC %s collector has wrong type %T", name, already.ExistingCollector)
	}
	return existing, nil
}

// UnaryServerInterceptor returns a gRPC unary interceptor that records metrics.
func (m *GRPCMetrics) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if m == nil {
			return handler(ctx, req)
		}
		done := m.observe("unary", info.FullMethod)
		resp, err := handler(ctx, req)
		done(err)
		return resp, err
	}
}

// StreamServerInterceptor records metrics for streaming calls, health watches included.
func (m *GRPCMetrics) StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if m == nil {
			return handler(srv, ss)
		}
		done := m.observe("stream", info.FullMethod)
		err := handler(srv, ss)
		done(err)
		return err
	}
}

func (m *GRPCMetrics) observe(kind, fullMethod string) func(error) {
	service, method := splitFullMethod(fullMethod)
	start := time.Now()
	gauge := m.inFlight.WithLabelValues(service)
	gauge.Inc()

	return func(err error) {
		gauge.Dec()
		labels := prometheus.Labels{
			"kind":    kind,
			"service": service,
			"method":  method,
			"code":    status.Code(err).String(),
		}
		m.requests.With(labels).Inc()
		m.duration.With(labels).Observe(time.Since(start).Seconds())
	}
}

func splitFullMethod(full string) (string, string) {
	full = strings.TrimPrefix(full, "/")
	service, method, ok := strings.Cut(full, "/")
	if !ok || strings.Contains(method, "/") {
		if full == "" {
			return "unknown", "unknown"
		}
		return full, "unknown"
	}
	if service == "" {
		service = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	return service, method
}
