package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/teroku/taskqueue/internal/cmd/client/transports"
	grpcserver "github.com/teroku/taskqueue/internal/server/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

type recordingTransport struct {
	lines []string
	reply string
	err   error
}

func (r *recordingTransport) Send(_ context.Context, line string) (string, error) {
	r.lines = append(r.lines, line)
	return r.reply, r.err
}

func withTransport(t *testing.T, tr transports.Transport) {
	t.Helper()
	prev := newTransport
	newTransport = func(*cobra.Command) transports.Transport { return tr }
	t.Cleanup(func() { newTransport = prev })
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRoot(func() string { return "127.0.0.1:1" })
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestCommandsSendWireLines(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"add", "jobs", "hello"}, "ADD jobs 5 hello"},
		{[]string{"add", "jobs", "hello", "--length", "x"}, "ADD jobs x hello"},
		{[]string{"get", "jobs"}, "GET jobs"},
		{[]string{"ack", "jobs", "3"}, "ACK jobs 3"},
		{[]string{"in", "jobs", "3"}, "IN jobs 3"},
		{[]string{"send", "GET", "jobs"}, "GET jobs"},
	}
	for _, tt := range tests {
		tr := &recordingTransport{reply: "YES"}
		withTransport(t, tr)
		out, err := execute(t, tt.args...)
		if err != nil {
			t.Fatalf("%v: %v", tt.args, err)
		}
		if len(tr.lines) != 1 || tr.lines[0] != tt.want {
			t.Fatalf("%v: sent %q want %q", tt.args, tr.lines, tt.want)
		}
		if strings.TrimSpace(out) != "YES" {
			t.Fatalf("%v: output %q", tt.args, out)
		}
	}
}

func TestAddRejectsWhitespacePayload(t *testing.T) {
	tr := &recordingTransport{}
	withTransport(t, tr)
	if _, err := execute(t, "add", "jobs", "two words"); err == nil {
		t.Fatalf("expected error")
	}
	if len(tr.lines) != 0 {
		t.Fatalf("nothing should be sent")
	}
}

func TestGetJSON(t *testing.T) {
	tests := []struct {
		reply string
		want  map[string]any
	}{
		{"4 5 hello", map[string]any{"id": "4", "length": "5", "payload": "hello"}},
		{"NONE", map[string]any{"empty": true}},
	}
	for _, tt := range tests {
		withTransport(t, &recordingTransport{reply: tt.reply})
		out, err := execute(t, "get", "jobs", "--json")
		if err != nil {
			t.Fatalf("execute: %v", err)
		}
		var got map[string]any
		if err := json.Unmarshal([]byte(out), &got); err != nil {
			t.Fatalf("decode %q: %v", out, err)
		}
		for k, v := range tt.want {
			if got[k] != v {
				t.Fatalf("reply %q: %s=%v want %v", tt.reply, k, got[k], v)
			}
		}
	}
}

func TestNoReplyIsError(t *testing.T) {
	withTransport(t, &recordingTransport{err: transports.ErrNoReply})
	if _, err := execute(t, "ack", "missing", "0"); err == nil {
		t.Fatalf("expected error")
	}
}

type upChecker struct{}

func (upChecker) CheckHealth(context.Context) error { return nil }

func TestHealthCommand(t *testing.T) {
	srv := grpcserver.New(upChecker{}, 0, nil)
	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx, lis)
	}()
	defer func() {
		cancel()
		<-done
	}()

	prev := dialOptions
	dialOptions = append(append([]grpc.DialOption{}, prev...),
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return lis.Dial() }))
	t.Cleanup(func() { dialOptions = prev })

	out, err := execute(t, "health", "--grpc", "passthrough:///bufnet")
	if err != nil {
		t.Fatalf("health: %v (%s)", err, out)
	}
	if strings.TrimSpace(out) != "SERVING" {
		t.Fatalf("output %q", out)
	}
}

func TestAddrFromEnv(t *testing.T) {
	t.Setenv("TASKQ_ADDR", "")
	if AddrFromEnv() != "127.0.0.1:8080" {
		t.Fatalf("default addr")
	}
	t.Setenv("TASKQ_ADDR", "10.0.0.1:9000")
	if AddrFromEnv() != "10.0.0.1:9000" {
		t.Fatalf("env addr")
	}
}
