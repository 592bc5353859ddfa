package client

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/teroku/taskqueue/internal/protocol"
)

func newAddCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add QUEUE PAYLOAD",
		Short: "Add a task and print its id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, payload := args[0], args[1]
			if err := checkToken("queue", queue); err != nil {
				return err
			}
			if err := checkToken("payload", payload); err != nil {
				return err
			}
			length, _ := cmd.Flags().GetString("length")
			if length == "" {
				length = strconv.Itoa(len(payload))
			}
			if err := checkToken("length", length); err != nil {
				return err
			}
			line := protocol.Command{Verb: protocol.VerbAdd, Queue: queue, Args: []string{length, payload}}.String()
			return send(cmd, line, func(reply string) any { return map[string]string{"id": reply} })
		},
	}
	cmd.Flags().String("length", "", "Length field sent with the task (default: payload byte length)")
	return cmd
}

func newGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get QUEUE",
		Short: "Lease the next task of a queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkToken("queue", args[0]); err != nil {
				return err
			}
			line := protocol.Command{Verb: protocol.VerbGet, Queue: args[0]}.String()
			return send(cmd, line, renderTask)
		},
	}
}

func renderTask(reply string) any {
	if reply == protocol.NoTask {
		return map[string]any{"empty": true}
	}
	parts := strings.SplitN(reply, " ", 3)
	if len(parts) != 3 {
		return map[string]any{"raw": reply}
	}
	return map[string]any{"id": parts[0], "length": parts[1], "payload": parts[2]}
}

func renderBool(reply string) any {
	return map[string]bool{"ok": reply == protocol.Yes}
}

func newAckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ack QUEUE ID",
		Short: "Acknowledge a leased task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendIDCommand(cmd, protocol.VerbAck, args)
		},
	}
}

func newInCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "in QUEUE ID",
		Short: "Report whether a task is still in the queue",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendIDCommand(cmd, protocol.VerbIn, args)
		},
	}
}

func sendIDCommand(cmd *cobra.Command, verb protocol.Verb, args []string) error {
	if err := checkToken("queue", args[0]); err != nil {
		return err
	}
	if err := checkToken("id", args[1]); err != nil {
		return err
	}
	line := protocol.Command{Verb: verb, Queue: args[0], Args: []string{args[1]}}.String()
	return send(cmd, line, renderBool)
}

func newSendCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "send WORDS...",
		Short: "Send a raw command line, e.g. `send GET jobs`",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(cmd, strings.Join(args, " "), func(reply string) any {
				return map[string]string{"reply": reply}
			})
		},
	}
}
