// Package log provides the structured logging facade used across taskqueue.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// Field type for structured context. Internally records travel through a
// log/slog handler that feeds the package's own formatter and outputs, so
// console, rotating file and null outputs all render the same way.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("server"))
//	l.Info("listening", log.Int("port", 8080))
//
// # Configuration
//
// ApplyConfig builds a logger from a declarative Config: text or JSON
// formatting, an optional lumberjack-rotated file, key redaction and
// per-message sampling.
//
// # Interop
//
// RedirectStdLog routes the standard library logger (used by Pebble) through
// a Logger; ToStdLogger returns a *log.Logger for APIs that need one.
package log
