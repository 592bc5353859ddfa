package protocol

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrMalformed is returned by Parse for invalid UTF-8, an unknown verb or
// wrong arity.
var ErrMalformed = errors.New("protocol: malformed command")

// Verb is a command keyword. Verbs are case-sensitive.
type Verb string

const (
	VerbAdd Verb = "ADD"
	VerbGet Verb = "GET"
	VerbAck Verb = "ACK"
	VerbIn  Verb = "IN"
)

// Replies.
const (
	Yes = "YES"
	No  = "NO"
	// NoTask is the GET reply when nothing is eligible. A task reply always
	// carries two separators, so it can never equal NoTask.
	NoTask = "NONE"
)

var arity = map[Verb]int{
	VerbAdd: 4,
	VerbGet: 2,
	VerbAck: 3,
	VerbIn:  3,
}

// Command is a parsed request. Args excludes the verb.
type Command struct {
	Verb  Verb
	Queue string
	Args  []string
}

// Parse splits line on whitespace and validates the verb and token count.
// Argument contents are not checked beyond being valid UTF-8, since queue
// names and payloads must survive a snapshot unchanged.
func Parse(line string) (Command, error) {
	if !utf8.ValidString(line) {
		return Command{}, fmt.Errorf("%w: invalid utf-8", ErrMalformed)
	}
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return Command{}, fmt.Errorf("%w: empty", ErrMalformed)
	}
	v := Verb(tokens[0])
	want, ok := arity[v]
	if !ok {
		return Command{}, fmt.Errorf("%w: unknown verb %q", ErrMalformed, truncate(tokens[0]))
	}
	if len(tokens) != want {
		return Command{}, fmt.Errorf("%w: %s takes %d tokens, got %d", ErrMalformed, v, want, len(tokens))
	}
	return Command{Verb: v, Queue: tokens[1], Args: tokens[2:]}, nil
}

// String renders the command in wire form.
func (c Command) String() string {
	parts := append([]string{string(c.Verb), c.Queue}, c.Args...)
	return strings.Join(parts, " ")
}

func truncate(s string) string {
	if len(s) > 32 {
		return s[:32] + "..."
	}
	return s
}

// Store is the queue surface the dispatcher drives.
type Store interface {
	Add(ctx context.Context, queue, length, payload string) (string, error)
	Get(ctx context.Context, queue string) (Task, bool, error)
	Ack(ctx context.Context, queue, id string) (bool, error)
	In(ctx context.Context, queue, id string) (bool, error)
}

// Task is what a GET reply is rendered from.
type Task struct {
	ID      string
	Length  string
	Payload string
}

// Reply renders the task as "id length payload".
func (t Task) Reply() string { return t.ID + " " + t.Length + " " + t.Payload }
