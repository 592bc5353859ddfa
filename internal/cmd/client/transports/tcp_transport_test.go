package transports

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"
)

func serveOnce(t *testing.T, reply string) (string, <-chan string) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	got := make(chan string, 1)
	go func() {
		defer l.Close()
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		b, _ := io.ReadAll(conn)
		got <- string(b)
		_, _ = io.WriteString(conn, reply)
	}()
	return l.Addr().String(), got
}

func TestTCPTransportRoundTrip(t *testing.T) {
	addr, got := serveOnce(t, "0 5 hello")
	reply, err := NewTCP(addr, time.Second).Send(context.Background(), "GET q")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if reply != "0 5 hello" {
		t.Fatalf("reply %q", reply)
	}
	if line := <-got; line != "GET q" {
		t.Fatalf("server saw %q", line)
	}
}

func TestTCPTransportNoReply(t *testing.T) {
	addr, _ := serveOnce(t, "")
	_, err := NewTCP(addr, time.Second).Send(context.Background(), "ACK missing 0")
	if !errors.Is(err, ErrNoReply) {
		t.Fatalf("want ErrNoReply, got %v", err)
	}
}

func TestTCPTransportDialError(t *testing.T) {
	l, _ := net.Listen("tcp", "127.0.0.1:0")
	addr := l.Addr().String()
	_ = l.Close()
	if _, err := NewTCP(addr, time.Second).Send(context.Background(), "GET q"); err == nil {
		t.Fatalf("expected dial error")
	}
}
