package logger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LevelAlways marks audit records (player actions sent to the relay) that
// are written regardless of the configured level.
const LevelAlways = slog.Level(12)

var (
	logger    *slog.Logger
	logFile   *lumberjack.Logger
	wireTrace atomic.Bool
)

// Initialize sets up the logger with the provided configuration. Console
// records go to stderr unless console_target is "stdout", so they do not
// mix with the interactive console on stdout.
func Initialize(config Config) error {
	var handlers []slog.Handler

	if config.FileEnabled && config.FilePath == "" {
		return errors.New("logging: file_enabled requires file_path")
	}

	level := parseLogLevel(config.Level)
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevel,
	}

	if config.ConsoleEnabled {
		handlers = append(handlers, newHandler(config.ConsoleFormat, consoleWriter(config.ConsoleTarget), opts))
	}

	Close()
	if config.FileEnabled {
		logFile = &lumberjack.Logger{
			Filename:   config.FilePath,
			MaxSize:    config.FileMaxSizeMB,
			MaxBackups: config.FileMaxBackups,
			MaxAge:     config.FileMaxAgeDays,
			Compress:   config.FileCompress,
		}
		handlers = append(handlers, newHandler(config.FileFormat, logFile, opts))
	}

	if len(handlers) == 0 {
		handlers = append(handlers, slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}

	if len(handlers) == 1 {
		logger = slog.New(handlers[0])
	} else {
		logger = slog.New(newMultiHandler(handlers...))
	}
	wireTrace.Store(config.WireTrace)

	return nil
}

// Close releases the rotating log file, if any.
func Close() error {
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

func consoleWriter(target string) io.Writer {
	if strings.EqualFold(target, "stdout") {
		return os.Stdout
	}
	return os.Stderr
}

func newHandler(format string, w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func replaceLevel(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if level, ok := a.Value.Any().(slog.Level); ok && level == LevelAlways {
			a.Value = slog.StringValue("ALWAYS")
		}
	}
	return a
}

// parseLogLevel converts a string log level to slog.Level. Case is ignored.
func parseLogLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARNING", "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func logAt(level slog.Level, msg string, args []any) {
	if logger != nil {
		logger.Log(context.Background(), level, msg, args...)
	}
}

func Debug(msg string, args ...any)   { logAt(slog.LevelDebug, msg, args) }
func Info(msg string, args ...any)    { logAt(slog.LevelInfo, msg, args) }
func Warning(msg string, args ...any) { logAt(slog.LevelWarn, msg, args) }
func Error(msg string, args ...any)   { logAt(slog.LevelError, msg, args) }

// Always logs past any level filter. It records the actions sent to the
// relay on the player's behalf.
func Always(msg string, args ...any) { logAt(LevelAlways, msg, args) }

// Wire logs one protocol line when wire tracing is on. direction is "rx" or "tx".
func Wire(direction, line string, args ...any) {
	if logger == nil || !wireTrace.Load() {
		return
	}
	logAt(slog.LevelDebug, "wire", append([]any{"dir", direction, "line", line}, args...))
}

// SetWireTrace toggles wire tracing at runtime.
func SetWireTrace(enabled bool) {
	wireTrace.Store(enabled)
}

// multiHandler fans each record out to the console and file handlers.
type multiHandler struct {
	handlers []slog.Handler
}

func newMultiHandler(handlers ...slog.Handler) *multiHandler {
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle passes the record to every enabled handler. A failing handler
// does not stop the others; their errors are joined.
func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return newMultiHandler(handlers...)
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return newMultiHandler(handlers...)
}
