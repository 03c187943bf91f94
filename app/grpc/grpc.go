package grpc

import (
	"github.com/exoticlogicbuilder/auth-service/app/service"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// NewServer builds a gRPC server exposing the auth service and the standard
// health service. Internal methods require an x-api-key.
func NewServer(authServer AuthServiceServer, internalAuth service.InternalAuthService, opts ...gogrpc.ServerOption) (*gogrpc.Server, *health.Server) {
	opts = append(opts, gogrpc.ChainUnaryInterceptor(
		RecoveryUnaryInterceptor(),
		LoggingUnaryInterceptor(),
		APIKeyUnaryInterceptor(internalAuth, InternalMethods...),
	))

	srv := gogrpc.NewServer(opts...)
	RegisterAuthServiceServer(srv, authServer)

	healthServer := health.NewServer()
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, healthServer)

	return srv, healthServer
}
