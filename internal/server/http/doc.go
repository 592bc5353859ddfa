// Package httpserver exposes the process health over HTTP at /v1/healthz.
//
// Example:
//
//	s := httpserver.New(rt, logger)
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = s.ListenAndServe(ctx, ":8081")
package httpserver
