// Package grpc exposes the standard grpc.health.v1 service so orchestrators
// can tell whether the server and its storage are usable.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/fundkeeper/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported alongside the server-wide
// empty name.
const ServiceName = "fundkeeper"

const (
	defaultProbeInterval = 10 * time.Second
	stopTimeout          = 5 * time.Second
)

// Probe reports whether storage is reachable. A nil Probe means always
// healthy.
type Probe func(ctx context.Context) error

type GRPCServer struct {
	address  string
	logger   logging.Logger
	health   *health.Server
	probe    Probe
	interval time.Duration
}

func NewGRPCServer(a string, l logging.Logger, probe Probe) *GRPCServer {
	return &GRPCServer{
		address:  a,
		logger:   l.With("module", "grpc_server"),
		health:   health.NewServer(),
		probe:    probe,
		interval: defaultProbeInterval,
	}
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "Starting gRPC server", "address", s.address)
	return s.Serve(ctx, listen)
}

// Serve handles health checks on lis until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor))
	healthpb.RegisterHealthServer(srv, s.health)

	s.check(ctx)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.logger.Info(ctx, "Stopping gRPC server...")
				s.health.Shutdown()
				s.stop(srv)
				return
			case <-ticker.C:
				s.check(ctx)
			}
		}
	}()

	if err := srv.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return err
	}
	return nil
}

// stop drains in-flight calls but gives up on open Watch streams.
func (s *GRPCServer) stop(srv *grpc.Server) {
	done := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(stopTimeout):
		srv.Stop()
	}
}

func (s *GRPCServer) check(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if s.probe != nil {
		pctx, cancel := context.WithTimeout(ctx, s.interval)
		err := s.probe(pctx)
		cancel()
		if err != nil {
			s.logger.Warn(ctx, "storage probe failed", "error", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}
