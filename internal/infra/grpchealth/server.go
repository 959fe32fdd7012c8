package grpchealth

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported for the guest stay API.
const ServiceName = "gueststay.v1.GuestStays"

// Prober returns the failing dependencies, keyed by name.
type Prober func(ctx context.Context) map[string]string

// Server serves the standard gRPC health protocol and refreshes the serving
// status from Prober on every tick.
type Server struct {
	Addr     string
	Probe    Prober
	Interval time.Duration
	Logger   *slog.Logger

	grpc   *grpc.Server
	health *health.Server
}

func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	s.health = health.NewServer()
	s.grpc = grpc.NewServer()
	grpc_health_v1.RegisterHealthServer(s.grpc, s.health)
	s.refresh(ctx)

	go s.watch(ctx)
	go func() {
		<-ctx.Done()
		s.health.Shutdown()
		s.grpc.GracefulStop()
	}()

	s.log().Info("grpc health listening", "addr", s.Addr)
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

func (s *Server) watch(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refresh(ctx)
		}
	}
}

func (s *Server) refresh(ctx context.Context) {
	status := grpc_health_v1.HealthCheckResponse_SERVING
	if s.Probe != nil {
		if failures := s.Probe(ctx); len(failures) > 0 {
			status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
			s.log().Warn("dependency not ready", "failures", failures)
		}
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

func (s *Server) log() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
