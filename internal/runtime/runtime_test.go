package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/andres-erbsen/clock"
	cfgpkg "github.com/teroku/taskqueue/internal/config"
	"github.com/teroku/taskqueue/internal/protocol"
)

func testConfig(dir string) cfgpkg.Config {
	cfg := cfgpkg.Default()
	cfg.DataDir = dir
	return cfg
}

func exec(t *testing.T, rt *Runtime, line string) string {
	t.Helper()
	cmd, err := protocol.Parse(line)
	if err != nil {
		t.Fatalf("parse %q: %v", line, err)
	}
	reply, err := rt.Dispatcher().Execute(context.Background(), cmd)
	if err != nil {
		t.Fatalf("execute %q: %v", line, err)
	}
	return reply
}

func TestOpenCloseHealth(t *testing.T) {
	rt, err := Open(Options{Config: testConfig(t.TempDir())})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	if err := rt.CheckHealth(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
	if err := rt.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := rt.CheckHealth(context.Background()); err == nil {
		t.Fatalf("health after close should fail")
	}
	if err := rt.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestStatePersistsAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	mock := clock.NewMock()

	rt, err := Open(Options{Config: testConfig(dir), Clock: mock})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if got := exec(t, rt, "ADD q 5 hello"); got != "0" {
		t.Fatalf("add: %s", got)
	}
	if got := exec(t, rt, "ADD q 2 hi"); got != "1" {
		t.Fatalf("add: %s", got)
	}
	if got := exec(t, rt, "GET q"); got != "0 5 hello" {
		t.Fatalf("get: %s", got)
	}
	_ = rt.Close()

	rt, err = Open(Options{Config: testConfig(dir), Clock: mock})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer rt.Close()
	if got := exec(t, rt, "IN q 0"); got != "YES" {
		t.Fatalf("in: %s", got)
	}
	if got := exec(t, rt, "GET q"); got != "1 2 hi" {
		t.Fatalf("leased task must stay invisible after restart, got %s", got)
	}
	if got := exec(t, rt, "ACK q 0"); got != "YES" {
		t.Fatalf("lease survives restart, ack got %s", got)
	}
	if got := exec(t, rt, "ADD q 1 x"); got != "2" {
		t.Fatalf("ids must not be reused after restart, got %s", got)
	}
}

func TestLeaseFromConfig(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.LeaseTimeoutMinutes = 3
	rt, err := Open(Options{Config: cfg})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rt.Close()
	if rt.Store().Lease() != 3*time.Minute {
		t.Fatalf("lease %v", rt.Store().Lease())
	}
}

func TestOpenRejectsBadFsync(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Fsync = "bogus"
	if _, err := Open(Options{Config: cfg}); err == nil {
		t.Fatalf("expected error")
	}
}
