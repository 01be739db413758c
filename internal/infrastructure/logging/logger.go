package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/veluxhome/lumen-core/internal/infrastructure/config"
)

// serviceName is stamped on every log record.
const serviceName = "lumen"

// Logger is a slog.Logger carrying the service and version fields.
// Safe for concurrent use; pass one instance through the whole process.
type Logger struct {
	*slog.Logger
}

// New builds the process logger from the logging config section.
// Unknown format strings fall back to JSON, unknown levels to info, and
// unknown outputs to stdout, so a typo in config degrades rather than
// silences logging.
func New(cfg config.LoggingConfig, version string) *Logger {
	out := writerFor(cfg.Output)

	opts := &slog.HandlerOptions{Level: levelFor(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", serviceName),
		slog.String("version", version),
	})

	return &Logger{Logger: slog.New(handler)}
}

func writerFor(output string) io.Writer {
	if strings.EqualFold(output, "stderr") {
		return os.Stderr
	}
	return os.Stdout
}

func levelFor(level string) slog.Level {
	switch strings.ToLower(level) {
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

// With returns a child logger with extra default attributes:
//
//	cloudLog := log.With("component", "cloud")
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default returns a JSON stdout logger at info level for the window before
// config is loaded.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}
