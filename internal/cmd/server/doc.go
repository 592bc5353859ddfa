// Package serverrun exposes the Run entrypoint used by the CLI to start the
// task queue server, handling lifecycle and shutdown.
//
// Example:
//
//	cfg := config.Default()
//	cfg.Port = 9000
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = serverrun.Run(ctx, serverrun.Options{Config: cfg})
package serverrun
