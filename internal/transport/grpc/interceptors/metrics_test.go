package interceptors

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestGRPCMetricsUnaryInterceptorRecordsMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics, err := NewGRPCMetrics(GRPCMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}

	interceptor := metrics.UnaryServerInterceptor()
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		time.Sleep(5 * time.Millisecond)
		return "ok", nil
	}
	info := &grpc.UnaryServerInfo{FullMethod: "/goshopper.identity.v1.IdentityService/ValidateToken"}

	if _, err := interceptor(context.Background(), struct{}{}, info, handler); err != nil {
		t.Fatalf("unexpected handler error: %v", err)
	}

	labels := prometheus.Labels{"kind": "unary", "service": "goshopper.identity.v1.IdentityService", "method": "ValidateToken", "code": codes.OK.String()}
	if got := testutil.ToFloat64(metrics.requests.With(labels)); got != 1 {
		t.Fatalf("expected request counter 1, got %f", got)
	}
	if inflight := testutil.ToFloat64(metrics.inFlight.WithLabelValues("goshopper.identity.v1.IdentityService")); inflight != 0 {
		t.Fatalf("expected in-flight gauge 0, got %f", inflight)
	}
	if samples := testutil.CollectAndCount(metrics.duration); samples == 0 {
		t.Fatalf("expected histogram to record observations")
	}
}

func TestGRPCMetricsUnaryInterceptorPropagatesErrors(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics, err := NewGRPCMetrics(GRPCMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}

	interceptor := metrics.UnaryServerInterceptor()
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.Unauthenticated, "denied")
	}
	info := &grpc.UnaryServerInfo{FullMethod: "/goshopper.identity.v1.IdentityService/GetProfile"}

	if _, err := interceptor(context.Background(), struct{}{}, info, handler); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected unauthenticated, got %v", err)
	}

	labels := prometheus.Labels{"kind": "unary", "service": "goshopper.identity.v1.IdentityService", "method": "GetProfile", "code": codes.Unauthenticated.String()}
	if got := testutil.ToFloat64(metrics.requests.With(labels)); got != 1 {
		t.Fatalf("expected request counter 1 for denied call, got %f", got)
	}
}

func TestGRPCMetricsStreamInterceptor(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics, err := NewGRPCMetrics(GRPCMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}

	info := &grpc.StreamServerInfo{FullMethod: "/grpc.health.v1.Health/Watch", IsServerStream: true}
	err = metrics.StreamServerInterceptor()(nil, &mockServerStream{ctx: context.Background()}, info, func(interface{}, grpc.ServerStream) error {
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	labels := prometheus.Labels{"kind": "stream", "service": "grpc.health.v1.Health", "method": "Watch", "code": codes.OK.String()}
	if got := testutil.ToFloat64(metrics.requests.With(labels)); got != 1 {
		t.Fatalf("expected stream counter 1, got %f", got)
	}
}

func TestGRPCMetricsReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	if _, err := NewGRPCMetrics(GRPCMetricsOptions{Registerer: registry}); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := NewGRPCMetrics(GRPCMetricsOptions{Registerer: registry}); err != nil {
		t.Fatalf("second registration should reuse collectors: %v", err)
	}
}

func TestSplitFullMethod(t *testing.T) {
	cases := map[string][2]string{
		"/svc.v1.Service/Method": {"svc.v1.Service", "Method"},
		"":                       {"unknown", "unknown"},
		"/Service":               {"Service", "unknown"},
	}
	for in, want := range cases {
		s, m := splitFullMethod(in)
		if s != want[0] || m != want[1] {
			t.Fatalf("splitFullMethod(%q) = %q, %q", in, s, m)
		}
	}
}

type mockServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (m *mockServerStream) Context() context.Context {
	return m.ctx
}
