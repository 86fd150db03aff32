// Command offscreen renders one frame on the GPU without a window and writes
// it to an image file.
//
// Settings come from, in increasing priority: built-in defaults, a TOML job
// file (-job or OFFSCREEN_JOB), OFFSCREEN_* environment variables (a .env
// file in the working directory is loaded first), and flags.
//
// Usage:
//
//	offscreen -width 907 -height 64 -output frame.png
//	offscreen -job frame.toml -target glsl -artifacts debug/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/gogpu/offscreen"
)

// shutdownSignals cancel the render context.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	// A missing .env is fine; anything else about it is not.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(stderr, "offscreen: .env: %v\n", err)
		return 2
	}

	s, err := loadSettings(args, os.LookupEnv, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "offscreen: %v\n", err)
		return 2
	}

	logger, err := newLogger(stderr, s.logLevel)
	if err != nil {
		fmt.Fprintf(stderr, "offscreen: %v\n", err)
		return 2
	}
	offscreen.SetLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals...)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var opts []offscreen.Option
	if s.lowPower {
		opts = append(opts, offscreen.WithLowPower())
	}

	start := time.Now()
	res, err := offscreen.Run(ctx, s.cfg, opts...)
	if err != nil {
		logger.Error("render failed", "err", err)
		return 1
	}
	for _, aerr := range res.ArtifactErrors {
		logger.Warn("artifact not written", "err", aerr)
	}
	logger.Info("done",
		"adapter", res.Adapter.Name,
		"output", res.OutputPath,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return 0
}

// newLogger builds a charmbracelet/log handler behind slog, tagged with a
// fresh run id.
func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("OFFSCREEN_LOG_LEVEL: %w", err)
	}
	h := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           lvl,
		Prefix:          "offscreen",
	})
	return slog.New(h).With("run_id", uuid.NewString()), nil
}
