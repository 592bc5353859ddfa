package protocol

import (
	"context"
	"fmt"

	"github.com/teroku/taskqueue/internal/queue"
)

// Dispatcher executes commands against a Store and renders replies.
type Dispatcher struct {
	store Store
}

// NewDispatcher returns a Dispatcher over store.
func NewDispatcher(store Store) *Dispatcher { return &Dispatcher{store: store} }

// Execute runs cmd and returns the reply text. Errors from the store are
// returned wrapped and never rendered into a reply.
func (d *Dispatcher) Execute(ctx context.Context, cmd Command) (string, error) {
	want, ok := arity[cmd.Verb]
	if !ok {
		return "", fmt.Errorf("%w: unknown verb %q", ErrMalformed, cmd.Verb)
	}
	if len(cmd.Args) != want-2 {
		return "", fmt.Errorf("%w: %s takes %d arguments, got %d", ErrMalformed, cmd.Verb, want-2, len(cmd.Args))
	}
	switch cmd.Verb {
	case VerbAdd:
		tid, err := d.store.Add(ctx, cmd.Queue, cmd.Args[0], cmd.Args[1])
		if err != nil {
			return "", fmt.Errorf("add: %w", err)
		}
		return tid, nil
	case VerbGet:
		task, ok, err := d.store.Get(ctx, cmd.Queue)
		if err != nil {
			return "", fmt.Errorf("get: %w", err)
		}
		if !ok {
			return NoTask, nil
		}
		return task.Reply(), nil
	case VerbAck:
		ok, err := d.store.Ack(ctx, cmd.Queue, cmd.Args[0])
		if err != nil {
			return "", fmt.Errorf("ack: %w", err)
		}
		return yesNo(ok), nil
	case VerbIn:
		ok, err := d.store.In(ctx, cmd.Queue, cmd.Args[0])
		if err != nil {
			return "", fmt.Errorf("in: %w", err)
		}
		return yesNo(ok), nil
	}
	return "", fmt.Errorf("%w: unknown verb %q", ErrMalformed, cmd.Verb)
}

func yesNo(ok bool) string {
	if ok {
		return Yes
	}
	return No
}

// QueueStore adapts a *queue.Store to the Store interface.
type QueueStore struct {
	*queue.Store
}

// Get implements Store.
func (s QueueStore) Get(ctx context.Context, name string) (Task, bool, error) {
	t, ok, err := s.Store.Get(ctx, name)
	if err != nil || !ok {
		return Task{}, ok, err
	}
	return Task{ID: t.ID.String(), Length: t.Length, Payload: t.Payload}, true, nil
}
