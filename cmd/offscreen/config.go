package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/gogpu/offscreen"
)

// settings is everything the command needs besides the frame itself.
type settings struct {
	cfg      offscreen.Config
	logLevel string
	timeout  time.Duration
	lowPower bool
}

// lookupFunc matches os.LookupEnv.
type lookupFunc func(key string) (string, bool)

// loadSettings layers defaults, the job file, OFFSCREEN_* variables and
// flags, later layers winning. Only flags given on the command line
// override.
func loadSettings(args []string, lookup lookupFunc, stderr io.Writer) (settings, error) {
	s := settings{cfg: offscreen.DefaultConfig(), logLevel: "info", timeout: 30 * time.Second}

	fs := flag.NewFlagSet("offscreen", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		job       = fs.String("job", "", "TOML job file describing the frame")
		width     = fs.Uint("width", uint(s.cfg.Width), "target width in pixels")
		height    = fs.Uint("height", uint(s.cfg.Height), "target height in pixels")
		output    = fs.String("output", s.cfg.Output, "image file (.png, .bmp, .tif, .tiff)")
		artifacts = fs.String("artifacts", s.cfg.ArtifactDir, "directory for shader debug artifacts (empty disables)")
		target    = fs.String("target", s.cfg.Target, "debug artifact target: spirv, glsl, msl, hlsl")
		format    = fs.String("format", s.cfg.Format, "target texture format")
		shaderSrc = fs.String("shader", "", "WGSL shader file (default: bundled triangle)")
		vertices  = fs.Uint("vertices", uint(s.cfg.VertexCount), "vertices to draw")
		uniforms  = fs.Bool("uniforms", false, "bind a view uniform buffer")
		adapter   = fs.String("adapter", "", "only use adapters whose name contains this")
		lowPower  = fs.Bool("low-power", false, "prefer integrated adapters")
		timeout   = fs.Duration("timeout", s.timeout, "give up waiting for the GPU after this long")
	)
	if err := fs.Parse(args); err != nil {
		return s, err
	}
	if fs.NArg() > 0 {
		return s, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	jobPath := *job
	if jobPath == "" {
		jobPath, _ = lookup("OFFSCREEN_JOB")
	}
	if jobPath != "" {
		if err := loadJob(jobPath, &s.cfg); err != nil {
			return s, err
		}
	}
	if err := applyEnv(&s, lookup); err != nil {
		return s, err
	}

	var flagErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "width":
			s.cfg.Width, flagErr = toUint32(*width, flagErr)
		case "height":
			s.cfg.Height, flagErr = toUint32(*height, flagErr)
		case "output":
			s.cfg.Output = *output
		case "artifacts":
			s.cfg.ArtifactDir = *artifacts
		case "target":
			s.cfg.Target = *target
		case "format":
			s.cfg.Format = *format
		case "shader":
			s.cfg.ShaderPath = *shaderSrc
		case "vertices":
			s.cfg.VertexCount, flagErr = toUint32(*vertices, flagErr)
		case "uniforms":
			s.cfg.Uniforms = *uniforms
		case "adapter":
			s.cfg.Adapter = *adapter
		case "low-power":
			s.lowPower = *lowPower
		case "timeout":
			s.timeout = *timeout
		}
	})
	if flagErr != nil {
		return s, flagErr
	}
	return s, s.cfg.Validate()
}

func toUint32(v uint, prev error) (uint32, error) {
	if prev != nil {
		return 0, prev
	}
	if uint64(v) > uint64(^uint32(0)) {
		return 0, fmt.Errorf("value %d out of range", v)
	}
	return uint32(v), nil
}

// loadJob decodes a TOML job file over cfg. Unknown keys are errors.
func loadJob(path string, cfg *offscreen.Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read job: %w", err)
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return fmt.Errorf("job %s:%d:%d: %w", path, row, col, err)
		}
		return fmt.Errorf("job %s: %w", path, err)
	}
	return nil
}

func applyEnv(s *settings, lookup lookupFunc) error {
	str := map[string]*string{
		"OFFSCREEN_OUTPUT":       &s.cfg.Output,
		"OFFSCREEN_ARTIFACT_DIR": &s.cfg.ArtifactDir,
		"OFFSCREEN_TARGET":       &s.cfg.Target,
		"OFFSCREEN_FORMAT":       &s.cfg.Format,
		"OFFSCREEN_SHADER":       &s.cfg.ShaderPath,
		"OFFSCREEN_ADAPTER":      &s.cfg.Adapter,
		"OFFSCREEN_LOG_LEVEL":    &s.logLevel,
	}
	for key, dst := range str {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	num := map[string]*uint32{
		"OFFSCREEN_WIDTH":  &s.cfg.Width,
		"OFFSCREEN_HEIGHT": &s.cfg.Height,
	}
	for key, dst := range num {
		v, ok := lookup(key)
		if !ok {
			continue
		}
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = uint32(n)
	}

	if v, ok := lookup("OFFSCREEN_UNIFORMS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("OFFSCREEN_UNIFORMS: %w", err)
		}
		s.cfg.Uniforms = b
	}
	return nil
}
