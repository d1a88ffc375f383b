package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/log"
)

const ScopeName = "github.com/freekieb7/kiln"

type Options struct {
	Level  string
	Output io.Writer

	// Provider routes records through the OpenTelemetry log bridge when set.
	Provider log.LoggerProvider
}

func NewLogger(opts Options) *slog.Logger {
	if opts.Provider != nil {
		return otelslog.NewLogger(ScopeName, otelslog.WithLoggerProvider(opts.Provider))
	}

	output := opts.Output
	if output == nil {
		output = os.Stderr
	}

	return slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{
		Level: ParseLevel(opts.Level),
	}))
}

func ParseLevel(level string) slog.Level {
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

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
