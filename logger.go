package offscreen

import (
	"log/slog"

	"github.com/gogpu/offscreen/internal/logging"
)

// SetLogger configures the logger for offscreen and all its sub-packages.
// By default nothing is logged. Pass nil to restore silent output.
//
// SetLogger is safe for concurrent use, including while a poll loop runs.
//
// Log levels used by offscreen:
//   - [slog.LevelDebug]: buffer sizes, row padding, pipeline state, submissions
//   - [slog.LevelInfo]: adapter selected, artifacts and images written
//   - [slog.LevelWarn]: non-fatal issues (artifact write failures, release errors)
//
// Example:
//
//	offscreen.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	logging.Set(l)
}

// Logger returns the current logger.
func Logger() *slog.Logger {
	return logging.L()
}
