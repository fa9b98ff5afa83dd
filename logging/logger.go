// Package logging provides a tiny abstraction over slog so downstream code can
// depend on a minimal interface (Logger) while allowing users to plug any
// structured logger. It also offers a RelayLogger with contextual helpers and
// a verbosity switch gating how much request/response payload detail is
// logged: full payload dumps are emitted only at VerbosityDebug.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Verbosity controls how much provider traffic detail ends up in the log.
type Verbosity int

const (
	// VerbosityInfo logs task lifecycle and errors only.
	VerbosityInfo Verbosity = iota
	// VerbosityVerbose additionally logs per-attempt provider/model lines.
	VerbosityVerbose
	// VerbosityDebug additionally dumps request and response payloads.
	VerbosityDebug
)

// String returns the string representation of the verbosity level.
func (v Verbosity) String() string {
	switch v {
	case VerbosityInfo:
		return "info"
	case VerbosityVerbose:
		return "verbose"
	case VerbosityDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// ParseVerbosity maps a configuration string to a Verbosity, defaulting to
// info for unknown values.
func ParseVerbosity(s string) Verbosity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return VerbosityDebug
	case "verbose":
		return VerbosityVerbose
	default:
		return VerbosityInfo
	}
}

// Logger defines the minimal logging interface for the relay.
// This allows users to provide their own logger implementation or use the
// built-in adapters.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// Debug logs a debug message.
func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }

// Info logs an informational message.
func (s *SlogAdapter) Info(msg string, args ...any) { s.Logger.Info(msg, args...) }

// Warn logs a warning message.
func (s *SlogAdapter) Warn(msg string, args ...any) { s.Logger.Warn(msg, args...) }

// Error logs an error message.
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewDefaultSlogLogger creates a Logger using slog.Default().
func NewDefaultSlogLogger() Logger {
	return NewSlogAdapter(slog.Default())
}

// RelayLogger wraps slog.Logger adding contextual cloning helpers and the
// payload-detail verbosity gate. It is cheap to copy via With* methods.
type RelayLogger struct {
	logger    *slog.Logger
	verbosity Verbosity
	context   map[string]any
	component string
	requestID string
}

// LoggerConfig configures construction of a RelayLogger.
type LoggerConfig struct {
	Verbosity   Verbosity
	Format      string // json or text
	Output      io.Writer
	AddSource   bool
	Component   string
	CustomAttrs map[string]any
}

// DefaultLoggerConfig returns a baseline JSON info level configuration.
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{Verbosity: VerbosityInfo, Format: "json", Output: os.Stdout, CustomAttrs: map[string]any{}}
}

// NewLogger builds a RelayLogger from a config (or defaults if nil).
func NewLogger(cfg *LoggerConfig) *RelayLogger {
	if cfg == nil {
		cfg = DefaultLoggerConfig()
	}
	level := slog.LevelInfo
	if cfg.Verbosity >= VerbosityVerbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level, AddSource: cfg.AddSource}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(cfg.Output, opts)
	} else {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	}
	ctx := map[string]any{}
	for k, v := range cfg.CustomAttrs {
		ctx[k] = v
	}
	return &RelayLogger{logger: slog.New(handler), verbosity: cfg.Verbosity, context: ctx, component: cfg.Component}
}

// Verbosity reports the configured payload-detail level.
func (l *RelayLogger) Verbosity() Verbosity { return l.verbosity }

func (l *RelayLogger) clone() *RelayLogger {
	nl := *l
	nl.context = map[string]any{}
	for k, v := range l.context {
		nl.context[k] = v
	}
	return &nl
}

// WithContext adds a key/value attribute attached to every log entry.
func (l *RelayLogger) WithContext(key string, value any) *RelayLogger {
	nl := l.clone()
	nl.context[key] = value
	return nl
}

// WithComponent sets the logical component (worker, selector, adapter name).
func (l *RelayLogger) WithComponent(c string) *RelayLogger {
	nl := l.clone()
	nl.component = c
	return nl
}

// WithRequest attaches the task correlation id.
func (l *RelayLogger) WithRequest(requestID string) *RelayLogger {
	nl := l.clone()
	nl.requestID = requestID
	return nl
}

func (l *RelayLogger) buildAttrs() []slog.Attr {
	attrs := make([]slog.Attr, 0, len(l.context)+3)
	if l.component != "" {
		attrs = append(attrs, slog.String("component", l.component))
	}
	if l.requestID != "" {
		attrs = append(attrs, slog.String("request_id", l.requestID))
	}
	for k, v := range l.context {
		attrs = append(attrs, slog.Any(k, v))
	}
	return attrs
}

func (l *RelayLogger) log(level slog.Level, msg string, args ...any) {
	attrs := l.buildAttrs()
	logArgs := make([]any, 0, len(attrs)+len(args))
	for _, a := range attrs {
		logArgs = append(logArgs, a)
	}
	logArgs = append(logArgs, args...)
	l.logger.Log(context.Background(), level, msg, logArgs...)
}

// Debug logs at debug level.
func (l *RelayLogger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args...) }

// Info logs at info level.
func (l *RelayLogger) Info(msg string, args ...any) { l.log(slog.LevelInfo, msg, args...) }

// Warn logs at warn level.
func (l *RelayLogger) Warn(msg string, args ...any) { l.log(slog.LevelWarn, msg, args...) }

// Error logs at error level.
func (l *RelayLogger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args...) }

// LogAttempt records one provider invocation. Provider/model lines appear at
// verbose and above; payload is included only at debug.
func (l *RelayLogger) LogAttempt(provider, model string, dur time.Duration, err error, payload any) {
	if l.verbosity < VerbosityVerbose {
		if err != nil {
			l.log(slog.LevelError, "provider call failed", "provider", provider, "model", model, "error", err.Error())
		}
		return
	}
	attrs := l.buildAttrs()
	attrs = append(attrs,
		slog.String("provider", provider),
		slog.String("model", model),
		slog.Duration("duration", dur),
		slog.Bool("success", err == nil),
	)
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	if l.verbosity >= VerbosityDebug && payload != nil {
		attrs = append(attrs, slog.Any("payload", payload))
	}
	level := slog.LevelDebug
	msg := "provider call completed"
	if err != nil {
		level = slog.LevelError
		msg = "provider call failed"
	}
	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// DumpPayload emits a full payload dump. No-op below debug verbosity.
func (l *RelayLogger) DumpPayload(label string, payload any) {
	if l.verbosity < VerbosityDebug {
		return
	}
	attrs := l.buildAttrs()
	attrs = append(attrs, slog.Any("payload", payload))
	l.logger.LogAttrs(context.Background(), slog.LevelDebug, label, attrs...)
}

// NoOpLogger discards all log messages. Useful for testing or when logging is
// disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}
