package serverrun

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	cfgpkg "github.com/teroku/taskqueue/internal/config"
	"github.com/teroku/taskqueue/internal/queue"
	"github.com/teroku/taskqueue/internal/runtime"
	grpcserver "github.com/teroku/taskqueue/internal/server/grpc"
	httpserver "github.com/teroku/taskqueue/internal/server/http"
	tcpserver "github.com/teroku/taskqueue/internal/server/tcp"
	logpkg "github.com/teroku/taskqueue/pkg/log"
)

type Options struct {
	Config cfgpkg.Config
	// Logger overrides the logger built from Config.Log.
	Logger logpkg.Logger
	// Ready, if set, is called with the bound command address.
	Ready func(addr net.Addr)
}

// Run validates the configuration, opens the runtime and serves the command
// protocol (plus optional health endpoints) until ctx is cancelled. A
// persistence failure stops everything and is returned.
func Run(ctx context.Context, opts Options) error {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return err
	}

	procLogger := opts.Logger
	if procLogger == nil {
		l, err := logpkg.ApplyConfig(&cfg.Log)
		if err != nil {
			return fmt.Errorf("%w: log: %v", cfgpkg.ErrInvalid, err)
		}
		procLogger = l
		// Pebble logs through the standard library logger.
		logpkg.RedirectStdLog(procLogger)
	}

	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := runtime.Open(runtime.Options{Config: cfg, Logger: procLogger})
	if err != nil {
		return err
	}
	defer rt.Close()

	lis, err := net.Listen("tcp", cfg.ListenAddr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.ListenAddr(), err)
	}
	procLogger.Info("Starting taskqueue server",
		logpkg.Str("addr", lis.Addr().String()),
		logpkg.Dur("lease", cfg.LeaseTimeout()),
		logpkg.Str("data_dir", cfg.ResolvedDataDir()),
		logpkg.Str("fsync", cfg.Fsync),
		logpkg.Str("health_grpc", cfg.HealthGRPCAddr),
		logpkg.Str("health_http", cfg.HealthHTTPAddr),
	)
	if opts.Ready != nil {
		opts.Ready(lis.Addr())
	}

	sctx, cancel := context.WithCancelCause(sctx)
	defer cancel(nil)

	if iv := cfg.SweepInterval(); iv > 0 {
		rt.Store().StartSweeper(iv, func(err error) { cancel(err) })
	}

	var wg sync.WaitGroup
	if cfg.HealthGRPCAddr != "" {
		gsrv := grpcserver.New(rt, 0, procLogger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := gsrv.ListenAndServe(sctx, cfg.HealthGRPCAddr); err != nil && sctx.Err() == nil {
				procLogger.Error("grpc health server failed", logpkg.Err(err))
			}
		}()
	}
	if cfg.HealthHTTPAddr != "" {
		hsrv := httpserver.New(rt, procLogger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := hsrv.ListenAndServe(sctx, cfg.HealthHTTPAddr); err != nil && sctx.Err() == nil {
				procLogger.Error("http health server failed", logpkg.Err(err))
			}
		}()
	}

	tsrv := tcpserver.New(rt.Dispatcher(), tcpserver.Options{
		MaxCommandBytes: cfg.MaxCommandBytes,
		ReadIdle:        cfg.ReadIdle(),
		MaxConns:        cfg.MaxConns,
		Logger:          procLogger,
	})
	serveErr := tsrv.Serve(sctx, lis)
	if serveErr == nil {
		if cause := context.Cause(sctx); errors.Is(cause, queue.ErrPersist) {
			serveErr = cause
		}
	}
	cancel(nil)
	rt.Store().StopSweeper()
	wg.Wait()

	if serveErr != nil {
		procLogger.Error("server stopped", logpkg.Err(serveErr))
		return serveErr
	}
	procLogger.Info("server stopped")
	return nil
}
