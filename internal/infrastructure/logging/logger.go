package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/greenhouse-catalog/internal/infrastructure/config"
)

// Component names attached to log lines by the catalog and peer packages.
const (
	ComponentAPI       = "api"
	ComponentStore     = "store"
	ComponentReaper    = "reaper"
	ComponentRegistrar = "registrar"
	ComponentLocator   = "locator"
	ComponentMQTT      = "mqtt"
	ComponentInflux    = "influxdb"
)

// ErrUnknownLevel is returned when a level name is not one of debug, info, warn or error.
var ErrUnknownLevel = errors.New("unknown log level")

// Logger wraps slog.Logger with catalog-specific defaults.
//
// Every logger derived from the same New call (via With, Component or Peer)
// shares one level, so SetLevel on any of them changes the whole process.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger
	level *slog.LevelVar
}

// New creates a new Logger with the specified configuration.
//
// An unrecognised level falls back to info; config.Validate rejects such
// values before a binary gets here.
//
// Parameters:
//   - cfg: Logging configuration from config.yaml
//   - service: Process name for the service field (catalog, deviceagent, ...)
//   - version: Application version for default field
//
// Returns:
//   - *Logger: Configured logger ready for use
func New(cfg config.LoggingConfig, service, version string) *Logger {
	return NewTo(writerFor(cfg.Output), cfg, service, version)
}

// NewTo is New writing to w instead of cfg.Output. catalogctl uses it to
// keep log lines on the command's error stream.
func NewTo(w io.Writer, cfg config.LoggingConfig, service, version string) *Logger {
	level := new(slog.LevelVar)
	if lvl, err := ParseLevel(cfg.Level); err == nil {
		level.Set(lvl)
	}
	return newLogger(w, cfg.Format, level, service, version)
}

func newLogger(w io.Writer, format string, level *slog.LevelVar, service, version string) *Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", service),
		slog.String("version", version),
	})

	return &Logger{Logger: slog.New(handler), level: level}
}

func writerFor(output string) io.Writer {
	if strings.EqualFold(output, "stderr") {
		return os.Stderr
	}
	return os.Stdout
}

// ParseLevel converts a level name to slog.Level. Matching is case
// insensitive, "warning" is accepted for warn and the empty string means info.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrUnknownLevel, level)
	}
}

// With returns a new Logger with additional default attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), level: l.level}
}

// Component tags every line with the subsystem that wrote it.
//
// Example:
//
//	reaperLog := logger.Component(logging.ComponentReaper)
//	reaperLog.Info("sweep complete") // Includes component=reaper
func (l *Logger) Component(name string) *Logger {
	return l.With("component", name)
}

// Peer tags every line with the catalog identity of the process writing it.
func (l *Logger) Peer(target string, id int64) *Logger {
	return l.With("target", target, "peer_id", id)
}

// Level reports the current minimum level.
func (l *Logger) Level() slog.Level {
	return l.level.Level()
}

// SetLevel changes the minimum level for this logger and every logger
// sharing its root. An unknown name leaves the level untouched.
func (l *Logger) SetLevel(name string) error {
	lvl, err := ParseLevel(name)
	if err != nil {
		return err
	}
	l.level.Set(lvl)
	return nil
}

// toggleDebug switches to debug, or back to base when already at debug.
// It returns the level now in force.
func (l *Logger) toggleDebug(base slog.Level) slog.Level {
	if l.level.Level() == slog.LevelDebug && base != slog.LevelDebug {
		l.level.Set(base)
	} else {
		l.level.Set(slog.LevelDebug)
	}
	return l.level.Level()
}

// Default creates a default logger for use before configuration is loaded.
//
// This logger outputs to stdout in JSON format at info level.
func Default(service string) *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, service, "dev")
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.DiscardHandler), level: new(slog.LevelVar)}
}
