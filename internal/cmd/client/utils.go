package client

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/teroku/taskqueue/internal/cmd/client/transports"
)

// AddrFunc returns the default server address.
type AddrFunc func() string

// AddrFromEnv returns TASKQ_ADDR or 127.0.0.1:8080.
func AddrFromEnv() string {
	if v := os.Getenv("TASKQ_ADDR"); v != "" {
		return v
	}
	return "127.0.0.1:8080"
}

// newTransport is replaced in tests.
var newTransport = func(cmd *cobra.Command) transports.Transport {
	addr, _ := cmd.Flags().GetString("addr")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	return transports.NewTCP(addr, timeout)
}

// send runs one command line and prints the reply.
func send(cmd *cobra.Command, line string, render func(reply string) any) error {
	reply, err := newTransport(cmd).Send(cmd.Context(), line)
	if err != nil {
		return err
	}
	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON && render != nil {
		b, err := json.Marshal(render(reply))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(b))
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), reply)
	return nil
}

// checkToken rejects arguments the server would split into several tokens.
func checkToken(name, v string) error {
	if v == "" || strings.ContainsAny(v, " \t\r\n\v\f") {
		return fmt.Errorf("%s must be a single non-empty token without whitespace", name)
	}
	return nil
}
