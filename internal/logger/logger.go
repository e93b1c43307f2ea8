package logger

import (
	"context"
	"io"
	"os"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

type ctxKey struct{}

// LoggerCtxKey is the context key under which a Logger is stored.
var LoggerCtxKey = ctxKey{}

// Logger is the structured, leveled logger used across the pipeline.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
	With(keyvals ...any) Logger
}

type loggerImpl struct {
	charmLogger *charmlog.Logger
}

func (l *loggerImpl) Debug(msg string, keyvals ...any) { l.charmLogger.Debug(msg, keyvals...) }
func (l *loggerImpl) Info(msg string, keyvals ...any)  { l.charmLogger.Info(msg, keyvals...) }
func (l *loggerImpl) Warn(msg string, keyvals ...any)  { l.charmLogger.Warn(msg, keyvals...) }
func (l *loggerImpl) Error(msg string, keyvals ...any) { l.charmLogger.Error(msg, keyvals...) }

func (l *loggerImpl) With(keyvals ...any) Logger {
	return &loggerImpl{charmLogger: l.charmLogger.With(keyvals...)}
}

// Config controls logger output.
type Config struct {
	Level      string
	Output     io.Writer
	JSON       bool
	TimeFormat string
}

// DefaultConfig logs info and above as text to stderr.
func DefaultConfig() *Config {
	return &Config{
		Level:      "info",
		Output:     os.Stderr,
		TimeFormat: "15:04:05",
	}
}

// New builds a Logger from cfg. A nil cfg uses DefaultConfig.
func New(cfg *Config) Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	l := charmlog.NewWithOptions(out, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      cfg.TimeFormat,
		Level:           ParseLevel(cfg.Level),
	})
	if cfg.JSON {
		l.SetFormatter(charmlog.JSONFormatter)
	}
	return &loggerImpl{charmLogger: l}
}

// ParseLevel maps a level name to a charm level, defaulting to info.
func ParseLevel(level string) charmlog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return charmlog.DebugLevel
	case "warn", "warning":
		return charmlog.WarnLevel
	case "error":
		return charmlog.ErrorLevel
	default:
		return charmlog.InfoLevel
	}
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() Logger {
	return New(&Config{Level: "error", Output: io.Discard})
}

var defaultLogger = New(nil)

// ContextWithLogger returns a copy of ctx carrying l.
func ContextWithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, LoggerCtxKey, l)
}

// FromContext returns the logger stored in ctx, or the package default.
func FromContext(ctx context.Context) Logger {
	if ctx != nil {
		if l, ok := ctx.Value(LoggerCtxKey).(Logger); ok && l != nil {
			return l
		}
	}
	return defaultLogger
}
