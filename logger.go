package procstream

import (
	"io"
	"log/slog"
)

// NopLogger returns a logger that discards all output.
// Sessions use this when no logger is configured.
func NopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
