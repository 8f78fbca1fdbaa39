// Package grpc serves the standard grpc.health.v1 service so clients and
// orchestrators can probe the gateway.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/snapboard/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name reported alongside the overall ("") status.
const ServiceName = "snapboard"

type GRPCServer struct {
	address string
	logger  logging.Logger
	health  *health.Server
	ready   chan net.Addr
}

func NewGRPCServer(address string, l logging.Logger) *GRPCServer {
	return &GRPCServer{
		address: address,
		logger:  l.With("module", "grpc_server"),
		health:  health.NewServer(),
		ready:   make(chan net.Addr, 1),
	}
}

// Ready yields the bound address once the listener is up.
func (s *GRPCServer) Ready() <-chan net.Addr {
	return s.ready
}

// Run serves until ctx is cancelled. Health flips to NOT_SERVING before
// the graceful stop so in-flight probes see the shutdown.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor))
	healthpb.RegisterHealthServer(srv, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())
	s.ready <- listen.Addr()

	return srv.Serve(listen)
}
