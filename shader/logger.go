// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"log/slog"

	"github.com/gogpu/offscreen/internal/logging"
)

// slogger returns the current package logger.
func slogger() *slog.Logger { return logging.L() }
