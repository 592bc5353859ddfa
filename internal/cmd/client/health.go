package client

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	grpcserver "github.com/teroku/taskqueue/internal/server/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func newHealthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Query the gRPC health service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("grpc")
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			status, err := checkHealth(ctx, addr)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), status)
			if status != healthpb.HealthCheckResponse_SERVING.String() {
				return fmt.Errorf("server is %s", status)
			}
			return nil
		},
	}
	cmd.Flags().String("grpc", "127.0.0.1:9090", "gRPC health address")
	return cmd
}

// dialOptions is extended in tests to reach an in-memory listener.
var dialOptions = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}

func checkHealth(ctx context.Context, addr string) (string, error) {
	conn, err := grpc.NewClient(addr, dialOptions...)
	if err != nil {
		return "", err
	}
	defer func() { _ = conn.Close() }()
	res, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: grpcserver.ServiceName})
	if err != nil {
		return "", err
	}
	return res.GetStatus().String(), nil
}
