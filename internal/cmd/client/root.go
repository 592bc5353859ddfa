package client

import (
	"github.com/spf13/cobra"
)

// NewRoot constructs the `client` command group. addr supplies the default
// server address for --addr.
func NewRoot(addr AddrFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   "client",
		Short: "Send commands to a taskqueue server",
	}
	root.PersistentFlags().String("addr", addr(), "Server address host:port (env TASKQ_ADDR)")
	root.PersistentFlags().Duration("timeout", 0, "Per-command timeout (default 10s)")
	root.PersistentFlags().Bool("json", false, "Print replies as JSON")
	root.AddCommand(
		newAddCommand(),
		newGetCommand(),
		newAckCommand(),
		newInCommand(),
		newSendCommand(),
		newHealthCommand(),
	)
	return root
}
