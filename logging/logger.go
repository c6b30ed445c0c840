package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// LogLevel is a thin enum for user friendly level configuration decoupled from slog.
type LogLevel int

const (
	// LogLevelDebug is the debug logging level.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is the informational logging level.
	LogLevelInfo
	// LogLevelWarn is the warning logging level.
	LogLevelWarn
	// LogLevelError is the error logging level.
	LogLevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a level name ("debug", "info", "warn", "error") to a LogLevel.
// Unknown names fall back to info.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// Logger is the minimal structured logging contract. Args are alternating
// key/value pairs as accepted by log/slog.
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

// MeshLogger wraps slog.Logger with a component label, sticky attributes and
// domain helpers for tool calls, model calls, agent steps and delegations.
// With* methods return copies; the receiver is never mutated.
type MeshLogger struct {
	logger    *slog.Logger
	component string
}

// LoggerConfig configures construction of a MeshLogger.
type LoggerConfig struct {
	Level     LogLevel
	Format    string // json or text
	Output    io.Writer
	AddSource bool
	Component string
}

// DefaultLoggerConfig returns a baseline JSON info level configuration writing to stderr.
// Stdout stays free for stdio-framed tool servers.
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{Level: LogLevelInfo, Format: "json", Output: os.Stderr}
}

// NewLogger builds a MeshLogger from a config (or defaults if nil).
func NewLogger(cfg *LoggerConfig) *MeshLogger {
	if cfg == nil {
		cfg = DefaultLoggerConfig()
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Level), AddSource: cfg.AddSource}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	return &MeshLogger{logger: slog.New(handler), component: cfg.Component}
}

// NewSlogLogger creates a MeshLogger with the given level, format and source flag.
func NewSlogLogger(level LogLevel, format string, addSource bool) *MeshLogger {
	cfg := DefaultLoggerConfig()
	cfg.Level = level
	if format != "" {
		cfg.Format = format
	}
	cfg.AddSource = addSource
	return NewLogger(cfg)
}

func slogLevel(l LogLevel) slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithComponent returns a copy labelled with the logical component (agent, team, mcp, ...).
func (l *MeshLogger) WithComponent(c string) *MeshLogger {
	nl := *l
	nl.component = c
	return &nl
}

// With returns a copy that attaches the given key/value pairs to every entry.
func (l *MeshLogger) With(args ...any) *MeshLogger {
	nl := *l
	nl.logger = l.logger.With(args...)
	return &nl
}

func (l *MeshLogger) emit(level slog.Level, msg string, attrs ...slog.Attr) {
	if !l.logger.Enabled(context.Background(), level) {
		return
	}
	all := make([]slog.Attr, 0, len(attrs)+1)
	if l.component != "" {
		all = append(all, slog.String("component", l.component))
	}
	all = append(all, attrs...)
	l.logger.LogAttrs(context.Background(), level, msg, all...)
}

func (l *MeshLogger) kv(level slog.Level, msg string, args ...any) {
	if !l.logger.Enabled(context.Background(), level) {
		return
	}
	if l.component != "" {
		args = append([]any{"component", l.component}, args...)
	}
	l.logger.Log(context.Background(), level, msg, args...)
}

// Debug logs at debug level.
func (l *MeshLogger) Debug(msg string, args ...any) { l.kv(slog.LevelDebug, msg, args...) }

// Info logs at info level.
func (l *MeshLogger) Info(msg string, args ...any) { l.kv(slog.LevelInfo, msg, args...) }

// Warn logs at warn level.
func (l *MeshLogger) Warn(msg string, args ...any) { l.kv(slog.LevelWarn, msg, args...) }

// Error logs at error level.
func (l *MeshLogger) Error(msg string, args ...any) { l.kv(slog.LevelError, msg, args...) }

// LogToolCall records execution details for a tool invocation.
func (l *MeshLogger) LogToolCall(tool string, dur time.Duration, success bool, err error) {
	attrs := []slog.Attr{slog.String("tool_name", tool), slog.Duration("duration", dur), slog.Bool("success", success)}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	if !success {
		l.emit(slog.LevelWarn, "tool.call.failed", attrs...)
		return
	}
	l.emit(slog.LevelInfo, "tool.call.end", attrs...)
}

// LogModelCall records completion latency and outcome.
func (l *MeshLogger) LogModelCall(model string, dur time.Duration, success bool, err error) {
	attrs := []slog.Attr{slog.String("model", model), slog.Duration("duration", dur), slog.Bool("success", success)}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	level := slog.LevelDebug
	if !success {
		level = slog.LevelError
	}
	l.emit(level, "model.call", attrs...)
}

// LogStep records one plan/act/observe cycle of an agent run.
func (l *MeshLogger) LogStep(agent string, step int, action string) {
	l.emit(slog.LevelDebug, "agent.step", slog.String("agent", agent), slog.Int("step", step), slog.String("action", action))
}

// LogDelegation records a manager handing a sub-task to a worker.
func (l *MeshLogger) LogDelegation(worker string, dur time.Duration, err error) {
	attrs := []slog.Attr{slog.String("worker", worker), slog.Duration("duration", dur)}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		l.emit(slog.LevelWarn, "team.delegate.failed", attrs...)
		return
	}
	l.emit(slog.LevelInfo, "team.delegate", attrs...)
}

// LogConnection records a tool-server connection attempt.
func (l *MeshLogger) LogConnection(server, transport string, dur time.Duration, err error) {
	attrs := []slog.Attr{slog.String("server", server), slog.String("transport", transport), slog.Duration("duration", dur)}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		l.emit(slog.LevelWarn, "mcp.server.discovery_failed", attrs...)
		return
	}
	l.emit(slog.LevelInfo, "mcp.server.connect", attrs...)
}

// StartTimer returns a closure that logs the elapsed duration when invoked.
func (l *MeshLogger) StartTimer(op string) func() {
	start := time.Now()
	return func() { l.Debug("operation.completed", "operation", op, "duration", time.Since(start)) }
}

// NoOpLogger discards all log messages. Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}
