package transports

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"
)

// TCPTransport opens one connection per command, as the protocol requires.
type TCPTransport struct {
	Addr    string
	Timeout time.Duration
}

// NewTCP returns a transport for addr. A zero timeout means 10s.
func NewTCP(addr string, timeout time.Duration) *TCPTransport {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TCPTransport{Addr: addr, Timeout: timeout}
}

// Send writes line, half-closes and reads until the server closes.
func (t *TCPTransport) Send(ctx context.Context, line string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", t.Addr)
	if err != nil {
		return "", fmt.Errorf("dial %s: %w", t.Addr, err)
	}
	defer conn.Close()
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}

	if _, err := io.WriteString(conn, line); err != nil {
		return "", fmt.Errorf("write: %w", err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		if err := tc.CloseWrite(); err != nil {
			return "", fmt.Errorf("half-close: %w", err)
		}
	}
	b, err := io.ReadAll(conn)
	if err != nil {
		if len(b) == 0 {
			return "", fmt.Errorf("%w: %v", ErrNoReply, err)
		}
		return "", fmt.Errorf("read: %w", err)
	}
	if len(b) == 0 {
		return "", ErrNoReply
	}
	return string(b), nil
}
