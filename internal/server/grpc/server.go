package grpcserver

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/teroku/taskqueue/pkg/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the service reported by the health server alongside the
// overall ("") status.
const ServiceName = "taskqueue"

// Checker reports whether the backing runtime is usable.
type Checker interface {
	CheckHealth(ctx context.Context) error
}

// Server owns the gRPC server instance and its health service.
type Server struct {
	checker  Checker
	grpc     *grpc.Server
	health   *health.Server
	interval time.Duration
	logger   log.Logger

	mu  sync.Mutex
	lis net.Listener
}

// New constructs a gRPC server exposing grpc.health.v1.Health. The serving
// status follows checker, polled every interval.
func New(checker Checker, interval time.Duration, logger log.Logger, opts ...grpc.ServerOption) *Server {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		logger = log.NewLogger(log.WithOutput(log.NullOutput{}))
	}
	s := &Server{
		checker:  checker,
		grpc:     grpc.NewServer(opts...),
		health:   health.NewServer(),
		interval: interval,
		logger:   logger.WithComponent("grpc"),
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.refresh(context.Background())
	return s
}

func (s *Server) refresh(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if err := s.checker.CheckHealth(ctx); err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		s.logger.Warn("health check failed", log.Err(err))
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

func (s *Server) watch(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.refresh(ctx)
		}
	}
}

// ListenAndServe binds to addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}

// Serve serves on l until ctx is done.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.mu.Lock()
	s.lis = l
	s.mu.Unlock()
	s.logger.Info("health service listening", log.Str("addr", l.Addr().String()))

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.watch(wctx)

	errCh := make(chan error, 1)
	go func() { errCh <- s.grpc.Serve(l) }()
	select {
	case <-ctx.Done():
		s.health.Shutdown()
		s.grpc.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}

// Close stops the server and closes the listener.
func (s *Server) Close() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis != nil {
		_ = s.lis.Close()
	}
}
