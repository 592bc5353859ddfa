package tcpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/teroku/taskqueue/internal/protocol"
	"github.com/teroku/taskqueue/internal/queue"
	"github.com/teroku/taskqueue/pkg/log"
)

const (
	DefaultMaxCommandBytes  = 5_000_000
	DefaultReadIdle         = 100 * time.Millisecond
	DefaultFirstByteTimeout = 30 * time.Second
	DefaultMaxConns         = 1024
)

// Executor runs one parsed command and returns the reply.
type Executor interface {
	Execute(ctx context.Context, cmd protocol.Command) (string, error)
}

// Options tunes connection handling. Zero values take the defaults above.
type Options struct {
	MaxCommandBytes  int
	ReadIdle         time.Duration
	FirstByteTimeout time.Duration
	MaxConns         int
	Logger           log.Logger
}

// Server accepts one command per connection and writes exactly one reply.
type Server struct {
	exec   Executor
	opts   Options
	logger log.Logger
	sem    chan struct{}

	mu    sync.Mutex
	lis   net.Listener
	wg    sync.WaitGroup
	fatal chan error
	once  sync.Once
}

// New constructs a Server dispatching to exec.
func New(exec Executor, opts Options) *Server {
	if opts.MaxCommandBytes <= 0 {
		opts.MaxCommandBytes = DefaultMaxCommandBytes
	}
	if opts.ReadIdle <= 0 {
		opts.ReadIdle = DefaultReadIdle
	}
	if opts.FirstByteTimeout <= 0 {
		opts.FirstByteTimeout = DefaultFirstByteTimeout
	}
	if opts.MaxConns <= 0 {
		opts.MaxConns = DefaultMaxConns
	}
	if opts.Logger == nil {
		opts.Logger = log.NewLogger(log.WithOutput(log.NullOutput{}))
	}
	return &Server{
		exec:   exec,
		opts:   opts,
		logger: opts.Logger.WithComponent("tcp"),
		sem:    make(chan struct{}, opts.MaxConns),
		fatal:  make(chan error, 1),
	}
}

// ListenAndServe binds to addr and serves until ctx is done or a persistence
// failure occurs. A persistence failure is returned; cancellation returns nil.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}

// Serve accepts connections on l. It closes l before returning and waits for
// in-flight connections to finish.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.mu.Lock()
	s.lis = l
	s.mu.Unlock()
	s.logger.Info("listening", log.Str("addr", l.Addr().String()))

	acceptErr := make(chan error, 1)
	go func() { acceptErr <- s.acceptLoop(ctx, l) }()

	var err error
	select {
	case <-ctx.Done():
	case err = <-s.fatal:
		s.logger.Error("stopping after persistence failure", log.Err(err))
	case err = <-acceptErr:
	}
	_ = l.Close()
	s.wg.Wait()
	if err == nil {
		select {
		case err = <-s.fatal:
		default:
		}
	}
	return err
}

// Addr returns the bound address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis == nil {
		return nil
	}
	return s.lis.Addr()
}

// Close stops accepting connections.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func (s *Server) acceptLoop(ctx context.Context, l net.Listener) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}
		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			_ = conn.Close()
			return nil
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() { <-s.sem }()
			s.handle(ctx, conn)
		}()
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	logger := s.logger.With(log.RequestID(uuid.NewString()), log.Str("remote", conn.RemoteAddr().String()))
	defer conn.Close()

	raw, err := s.readCommand(conn)
	if err != nil {
		logger.Debug("read failed", log.Err(err))
		return
	}
	cmd, err := protocol.Parse(string(raw))
	if err != nil {
		logger.Warn("malformed command", log.Err(err))
		reset(conn)
		return
	}
	logger = logger.With(log.Operation(string(cmd.Verb)), log.Str("queue", cmd.Queue))

	reply, err := s.exec.Execute(ctx, cmd)
	switch {
	case err == nil:
	case errors.Is(err, queue.ErrPersist):
		logger.Error("command failed to persist", log.Err(err))
		s.once.Do(func() { s.fatal <- err })
		return
	case errors.Is(err, queue.ErrQueueNotFound):
		logger.Warn("unknown queue", log.Err(err))
		return
	default:
		logger.Error("command failed", log.Err(err))
		return
	}

	if _, err := io.WriteString(conn, reply); err != nil {
		logger.Debug("write reply failed", log.Err(err))
		return
	}
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	}
	logger.Debug("command served")
}

// readCommand reads until EOF, MaxCommandBytes, or an idle gap of ReadIdle
// after the first byte. Newlines are ordinary whitespace.
func (s *Server) readCommand(conn net.Conn) ([]byte, error) {
	buf := make([]byte, 0, 512)
	chunk := make([]byte, 4096)
	deadline := time.Now().Add(s.opts.FirstByteTimeout)
	for len(buf) < s.opts.MaxCommandBytes {
		if err := conn.SetReadDeadline(deadline); err != nil {
			return nil, err
		}
		want := s.opts.MaxCommandBytes - len(buf)
		if want > len(chunk) {
			want = len(chunk)
		}
		n, err := conn.Read(chunk[:want])
		buf = append(buf, chunk[:n]...)
		if err != nil {
			if errors.Is(err, io.EOF) || (len(buf) > 0 && errors.Is(err, os.ErrDeadlineExceeded)) {
				if len(buf) == 0 {
					return nil, io.ErrUnexpectedEOF
				}
				return buf, nil
			}
			return nil, err
		}
		if n > 0 {
			deadline = time.Now().Add(s.opts.ReadIdle)
		}
	}
	return buf, nil
}

func reset(conn net.Conn) {
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetLinger(0)
	}
}
