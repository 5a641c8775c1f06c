// Package grpc exposes the session's readiness over the standard gRPC health protocol.
package grpc

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/ju4n97/neurocalc/internal/model"
)

// ServiceName is the health service name reported for the calculator.
const ServiceName = "neurocalc.v1.Calculator"

// StatusSource provides model slot status updates.
type StatusSource interface {
	Status() model.Status
	Subscribe() (<-chan model.Status, func())
}

// Server is a gRPC server whose health service follows the model slot.
type Server struct {
	server *grpc.Server
	health *health.Server
	addr   string
	stop   func()
	done   chan struct{}
	once   sync.Once
}

// NewServer creates a Server listening on port and starts tracking src.
func NewServer(port int, src StatusSource) *Server {
	s := &Server{
		server: grpc.NewServer(),
		health: health.NewServer(),
		addr:   fmt.Sprintf(":%d", port),
		done:   make(chan struct{}),
	}
	healthpb.RegisterHealthServer(s.server, s.health)

	events, stop := src.Subscribe()
	s.stop = stop
	s.apply(src.Status())

	go s.track(events)

	return s
}

// Health returns the health service implementation.
func (s *Server) Health() healthpb.HealthServer {
	return s.health
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Start listens on the configured address and blocks until the server stops.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until the server stops.
func (s *Server) Serve(ln net.Listener) error {
	slog.Info("Starting gRPC server", "addr", ln.Addr().String())

	if err := s.server.Serve(ln); err != nil {
		return fmt.Errorf("grpc server: %w", err)
	}
	return nil
}

// Stop marks every service as not serving and stops the server, waiting for pending
// RPCs until ctx is done.
func (s *Server) Stop(ctx context.Context) {
	s.once.Do(func() {
		slog.Info("Shutting down gRPC server")

		s.stop()
		<-s.done
		s.health.Shutdown()

		stopped := make(chan struct{})
		go func() {
			s.server.GracefulStop()
			close(stopped)
		}()

		select {
		case <-stopped:
		case <-ctx.Done():
			s.server.Stop()
		}
	})
}

func (s *Server) track(events <-chan model.Status) {
	defer close(s.done)

	for status := range events {
		s.apply(status)
	}
}

func (s *Server) apply(status model.Status) {
	serving := healthpb.HealthCheckResponse_NOT_SERVING
	if status.State == model.StateReady {
		serving = healthpb.HealthCheckResponse_SERVING
	}

	s.health.SetServingStatus("", serving)
	s.health.SetServingStatus(ServiceName, serving)

	slog.Debug("Health status updated", "state", status.State, "serving", serving.String())
}
