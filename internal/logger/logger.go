package logger

import (
	"io"
	"log/slog"
	"os"
)

// Setup returns a JSON structured slog.Logger writing to w.
func Setup(w io.Writer) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return slog.New(handler)
}

// SetupDefault installs a JSON structured logger as the global logger.
// Production is expected to pass os.Stdout.
func SetupDefault(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	slog.SetDefault(Setup(w))
}
