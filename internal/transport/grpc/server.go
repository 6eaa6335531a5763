package transportgrpc

import (
	"fmt"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpcinterceptors "github.com/kandyfoma/goshopperai-sub000/internal/transport/grpc/interceptors"
)

// ServerDependencies encapsulates services required by the gRPC server layer.
type ServerDependencies struct {
	Identity       IdentityServer
	Tokens         grpcinterceptors.TokenParser
	Metrics        *grpcinterceptors.GRPCMetrics
	TracerProvider trace.TracerProvider
	Propagators    propagation.TextMapPropagator
	Logger         *zap.Logger
}

// Server bundles the grpc.Server with its health service so the app can flip
// serving status on shutdown.
type Server struct {
	*grpc.Server
	Health *health.Server
}

// NewServer wires the identity and health services with tracing, metrics and
// authentication interceptors.
func NewServer(deps ServerDependencies) (*Server, error) {
	if deps.Identity == nil {
		return nil, fmt.Errorf("identity service is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	auth := grpcinterceptors.NewAuthInterceptor(deps.Tokens, grpcinterceptors.AuthOptions{
		Logger:        logger,
		AllowMethods:  []string{MethodValidateToken, MethodNormalizePhone},
		AllowPrefixes: []string{"/grpc.health.v1.Health/", "/grpc.reflection."},
	})

	server := grpc.NewServer(
		grpcinterceptors.TracingServerOption(grpcinterceptors.TracingOptions{
			TracerProvider: deps.TracerProvider,
			Propagators:    deps.Propagators,
		}),
		grpc.ChainUnaryInterceptor(deps.Metrics.UnaryServerInterceptor(), auth.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(deps.Metrics.StreamServerInterceptor(), auth.StreamServerInterceptor()),
	)

	server.RegisterService(&IdentityServiceDesc, deps.Identity)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(IdentityServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)

	// Register reflection service for tools like Postman, grpcurl, etc.
	reflection.Register(server)

	return &Server{Server: server, Health: healthServer}, nil
}

// Shutdown marks every service as not serving, then drains in-flight calls.
func (s *Server) Shutdown() {
	s.Health.Shutdown()
	s.GracefulStop()
}
