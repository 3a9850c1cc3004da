package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// PublicMethods are reachable without an access token.
var PublicMethods = []string{
	healthpb.Health_Check_FullMethodName,
}

// Server is the gRPC listener of gophauth. It serves the standard health
// service; transport services are registered on Registrar before Run.
type Server struct {
	address string
	srv     *grpc.Server
	health  *health.Server
	logger  logging.Logger
}

func NewServer(address string, interceptor *AccessTokenInterceptor, l logging.Logger) *Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(interceptor.Unary))

	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	return &Server{
		address: address,
		srv:     srv,
		health:  hs,
		logger:  l.With("module", "grpc_server"),
	}
}

// Registrar exposes the underlying server for service registration.
func (s *Server) Registrar() grpc.ServiceRegistrar {
	return s.srv
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done, then stops gracefully.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		s.srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := s.srv.Serve(lis); err != nil {
		return err
	}
	return nil
}
