package transports

import (
	"context"
	"errors"
)

// ErrNoReply means the server closed the connection without answering. The
// server does this for malformed commands and unknown queues.
var ErrNoReply = errors.New("server closed the connection without a reply")

// Transport sends one command line and returns the reply.
type Transport interface {
	Send(ctx context.Context, line string) (string, error)
}
