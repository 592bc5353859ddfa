package log

import (
	"fmt"
	stdlog "log"
	"strings"
)

// Config declares a logger: level, format and where entries go.
type Config struct {
	Level  string `json:"level" env:"LEVEL"`
	Format string `json:"format" env:"FORMAT"` // text|json

	// File, when set, adds a rotating file output next to the console.
	File             string   `json:"file" env:"FILE"`
	MaxSizeMB        int      `json:"maxSizeMB" env:"MAX_SIZE_MB"`
	MaxBackups       int      `json:"maxBackups" env:"MAX_BACKUPS"`
	Quiet            bool     `json:"quiet" env:"QUIET"` // drop the console output
	Redact           []string `json:"redact" env:"REDACT"`
	SampleInitial    int      `json:"sampleInitial" env:"SAMPLE_INITIAL"`
	SampleThereafter int      `json:"sampleThereafter" env:"SAMPLE_THEREAFTER"`
}

// ApplyConfig builds a Logger from cfg.
func ApplyConfig(cfg *Config) (Logger, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	var formatter Formatter
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		formatter = &TextFormatter{}
	case "json":
		formatter = &JSONFormatter{}
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	opts := []LoggerOption{WithLevel(level), WithFormatter(formatter)}
	if !cfg.Quiet {
		opts = append(opts, WithOutput(NewConsoleOutput()))
	}
	if cfg.File != "" {
		opts = append(opts, WithOutput(NewFileOutput(FileOptions{
			Path:       cfg.File,
			MaxSizeMB:  cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		})))
	}
	if cfg.Quiet && cfg.File == "" {
		opts = append(opts, WithOutput(NullOutput{}))
	}
	if len(cfg.Redact) > 0 {
		opts = append(opts, WithRedaction(cfg.Redact...))
	}
	if cfg.SampleThereafter > 0 {
		opts = append(opts, WithSampling(cfg.SampleInitial, cfg.SampleThereafter))
	}
	return NewLogger(opts...), nil
}

// stdWriter adapts a Logger to io.Writer for the standard library logger.
type stdWriter struct {
	logger Logger
}

func (w stdWriter) Write(p []byte) (int, error) {
	w.logger.Info(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// ToStdLogger returns a *log.Logger that forwards lines to l at info level.
func ToStdLogger(l Logger) *stdlog.Logger {
	return stdlog.New(stdWriter{logger: l}, "", 0)
}

// RedirectStdLog points the standard library's default logger at l, so that
// libraries logging through package log (Pebble among them) share our output.
func RedirectStdLog(l Logger) {
	stdlog.SetFlags(0)
	stdlog.SetPrefix("")
	stdlog.SetOutput(stdWriter{logger: l.WithComponent("stdlog")})
}
