// Package config loads the server configuration.
//
// Sources are layered: Default, then an optional JSON file (Load), then
// TASKQ_* environment variables (FromEnv, after LoadDotEnv), then CLI flags
// applied by the caller. Validate runs last and must pass before any socket
// is bound.
//
//	cfg, err := config.Load("/etc/taskqueue.json")
//	_ = config.LoadDotEnv()
//	_ = config.FromEnv(&cfg)
//	if err := cfg.Validate(); err != nil { ... }
package config
