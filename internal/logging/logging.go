// Package logging provides structured logging setup for vigia.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Setup initializes the default slog logger writing to w, or stdout when
// w is nil. Dev mode uses human-readable text; prod uses JSON.
func Setup(w io.Writer, devMode bool) {
	if w == nil {
		w = os.Stdout
	}
	var handler slog.Handler
	if devMode {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	} else {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	slog.SetDefault(slog.New(handler))
}
