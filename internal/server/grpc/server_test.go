package grpcserver

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

const bufSize = 1 << 20

type fakeChecker struct{ fail atomic.Bool }

func (f *fakeChecker) CheckHealth(context.Context) error {
	if f.fail.Load() {
		return errors.New("store closed")
	}
	return nil
}

func dial(t *testing.T, s *Server) healthpb.HealthClient {
	t.Helper()
	lis := bufconn.Listen(bufSize)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Serve(ctx, lis)
	}()
	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return lis.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		<-done
	})
	return healthpb.NewHealthClient(conn)
}

func TestHealthServing(t *testing.T) {
	c := dial(t, New(&fakeChecker{}, time.Hour, nil))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for _, svc := range []string{"", ServiceName} {
		res, err := c.Check(ctx, &healthpb.HealthCheckRequest{Service: svc})
		if err != nil {
			t.Fatalf("check %q: %v", svc, err)
		}
		if res.GetStatus() != healthpb.HealthCheckResponse_SERVING {
			t.Fatalf("status %q: %v", svc, res.GetStatus())
		}
	}
}

func TestHealthFollowsChecker(t *testing.T) {
	chk := &fakeChecker{}
	c := dial(t, New(chk, 10*time.Millisecond, nil))
	chk.fail.Store(true)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		res, err := c.Check(ctx, &healthpb.HealthCheckRequest{})
		if err != nil {
			t.Fatalf("check: %v", err)
		}
		if res.GetStatus() == healthpb.HealthCheckResponse_NOT_SERVING {
			return
		}
		select {
		case <-ctx.Done():
			t.Fatalf("status never flipped to NOT_SERVING")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
