package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	pebblestore "github.com/teroku/taskqueue/internal/storage/pebble"
	"github.com/teroku/taskqueue/pkg/log"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Config is the server configuration loaded from defaults, file, env and
// flags, in that order of precedence.
type Config struct {
	Port                int    `json:"port" env:"PORT"`
	LeaseTimeoutMinutes int    `json:"leaseTimeoutMinutes" env:"LEASE_TIMEOUT_MINUTES"`
	BindAddress         string `json:"bindAddress" env:"BIND_ADDRESS"`

	DataDir         string `json:"dataDir" env:"DATA_DIR"`
	Fsync           string `json:"fsync" env:"FSYNC"` // always|interval|never
	FsyncIntervalMs int    `json:"fsyncIntervalMs" env:"FSYNC_INTERVAL_MS"`

	MaxCommandBytes int `json:"maxCommandBytes" env:"MAX_COMMAND_BYTES"`
	ReadIdleMs      int `json:"readIdleMs" env:"READ_IDLE_MS"`
	MaxConns        int `json:"maxConns" env:"MAX_CONNS"`
	SweepIntervalMs int `json:"sweepIntervalMs" env:"SWEEP_INTERVAL_MS"` // 0 disables the sweeper

	// Empty addresses disable the health endpoints.
	HealthGRPCAddr string `json:"healthGrpcAddr" env:"HEALTH_GRPC_ADDR"`
	HealthHTTPAddr string `json:"healthHttpAddr" env:"HEALTH_HTTP_ADDR"`

	Log log.Config `json:"log" envPrefix:"LOG_"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		Port:                8080,
		LeaseTimeoutMinutes: 5,
		BindAddress:         "0.0.0.0",
		Fsync:               "always",
		FsyncIntervalMs:     5,
		MaxCommandBytes:     5_000_000,
		ReadIdleMs:          100,
		MaxConns:            1024,
		Log:                 log.Config{Level: "info", Format: "text"},
	}
}

// Load reads a JSON file over the defaults. An empty path returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json", "":
	default:
		return Config{}, fmt.Errorf("unsupported config format %q; use JSON", ext)
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every field and joins all failures. Each failure wraps
// ErrInvalid.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}
	if c.Port < 0 || c.Port > 65535 {
		bad("port %d out of range 0-65535", c.Port)
	}
	if c.LeaseTimeoutMinutes < 1 || c.LeaseTimeoutMinutes > 10000 {
		bad("lease timeout %d minutes out of range 1-10000", c.LeaseTimeoutMinutes)
	}
	if !isDottedQuad(c.BindAddress) {
		bad("bind address %q is not a dotted-quad IPv4 address", c.BindAddress)
	}
	if _, err := pebblestore.ParseFsyncMode(c.Fsync); err != nil {
		bad("fsync: %v", err)
	}
	if c.FsyncIntervalMs < 0 {
		bad("fsync interval %dms is negative", c.FsyncIntervalMs)
	}
	if c.MaxCommandBytes <= 0 {
		bad("max command bytes must be positive")
	}
	if c.ReadIdleMs <= 0 {
		bad("read idle must be positive")
	}
	if c.MaxConns <= 0 {
		bad("max conns must be positive")
	}
	if c.SweepIntervalMs < 0 {
		bad("sweep interval %dms is negative", c.SweepIntervalMs)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		bad("log level: %v", err)
	}
	return errors.Join(errs...)
}

// isDottedQuad accepts exactly four decimal octets, e.g. 127.0.0.1.
func isDottedQuad(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return false
	}
	for _, p := range parts {
		if p == "" || len(p) > 3 {
			return false
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 255 || p[0] == '+' || p[0] == '-' {
			return false
		}
	}
	return net.ParseIP(s).To4() != nil
}

// ListenAddr is the TCP address the command server binds.
func (c Config) ListenAddr() string {
	return net.JoinHostPort(c.BindAddress, strconv.Itoa(c.Port))
}

// LeaseTimeout is the visibility timeout.
func (c Config) LeaseTimeout() time.Duration {
	return time.Duration(c.LeaseTimeoutMinutes) * time.Minute
}

// FsyncMode parses Fsync. Validate reports the same error.
func (c Config) FsyncMode() (pebblestore.FsyncMode, error) {
	return pebblestore.ParseFsyncMode(c.Fsync)
}

func (c Config) FsyncInterval() time.Duration {
	return time.Duration(c.FsyncIntervalMs) * time.Millisecond
}

func (c Config) ReadIdle() time.Duration {
	return time.Duration(c.ReadIdleMs) * time.Millisecond
}

func (c Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMs) * time.Millisecond
}

// ResolvedDataDir returns DataDir, or DefaultDataDir when it is empty.
func (c Config) ResolvedDataDir() string {
	if c.DataDir != "" {
		return c.DataDir
	}
	return DefaultDataDir()
}
