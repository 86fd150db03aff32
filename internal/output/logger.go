package output

import (
	"log/slog"

	"github.com/gogpu/offscreen/internal/logging"
)

func slogger() *slog.Logger { return logging.L() }
