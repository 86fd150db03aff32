package device

import (
	"log/slog"

	"github.com/gogpu/offscreen/internal/logging"
)

// slogger returns the current package logger.
func slogger() *slog.Logger { return logging.L() }
