package observability

import (
	"io"
	"log/slog"
	"os"
)

func NewLogger(env string) *slog.Logger {
	return newLogger(env, os.Stdout)
}

// NewLoggerTo is NewLogger writing to w. Interactive tools use it to keep
// stdout for their own output.
func NewLoggerTo(env string, w io.Writer) *slog.Logger {
	return newLogger(env, w)
}

func newLogger(env string, w io.Writer) *slog.Logger {
	level := slog.LevelInfo

	if env == "dev" {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(NewContextHandler(handler))
}
