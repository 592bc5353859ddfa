// Package grpcserver hosts the standard gRPC health service
// (grpc.health.v1.Health) for the task queue process.
//
// Example:
//
//	s := grpcserver.New(rt, 5*time.Second, logger)
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = s.ListenAndServe(ctx, ":9090")
package grpcserver
