package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is a structured logger wrapper for components that take a
// *slog.Logger, such as the supervisor event hook
type Logger struct {
	*slog.Logger
	instanceID string
}

// New creates a JSON slog logger writing to w (stdout when nil)
func New(instanceID string, w io.Writer, level string) *Logger {
	if w == nil {
		w = os.Stdout
	}
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}

	handler := slog.NewJSONHandler(w, opts)
	logger := slog.New(handler).With("instance_id", instanceID)

	return &Logger{
		Logger:     logger,
		instanceID: instanceID,
	}
}

// ParseLevel maps zerolog style level names onto slog levels
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace", "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "fatal", "panic":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithComponent returns a logger with component context
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger:     l.Logger.With("component", component),
		instanceID: l.instanceID,
	}
}

// InstanceID returns the instance the logger is bound to
func (l *Logger) InstanceID() string {
	return l.instanceID
}
