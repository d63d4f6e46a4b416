package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Logger is a component-scoped wrapper over slog. Package-level loggers are
// built before Init runs, so the default handler is looked up on every call.
type Logger struct {
	component string
	attrs     []any
}

// Init installs the process-wide handler. format is "json" or "text".
func Init(format, level string) {
	options := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(os.Stdout, options)
	} else {
		handler = slog.NewTextHandler(os.Stdout, options)
	}
	slog.SetDefault(slog.New(handler))
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func NewLogger(component string) *Logger {
	return &Logger{component: component}
}

func (l *Logger) inner() *slog.Logger {
	lg := slog.Default().With("component", l.component)
	if len(l.attrs) > 0 {
		lg = lg.With(l.attrs...)
	}
	return lg
}

func (l *Logger) Info(msg string, args ...any) {
	l.inner().Info(msg, args...)
}

func (l *Logger) Error(msg string, args ...any) {
	l.inner().Error(msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.inner().Warn(msg, args...)
}

func (l *Logger) Debug(msg string, args ...any) {
	l.inner().Debug(msg, args...)
}

// With returns a child logger that adds args to every record.
func (l *Logger) With(args ...any) *Logger {
	attrs := make([]any, 0, len(l.attrs)+len(args))
	attrs = append(attrs, l.attrs...)
	attrs = append(attrs, args...)
	return &Logger{component: l.component, attrs: attrs}
}
