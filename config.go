package offscreen

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/offscreen/internal/output"
	"github.com/gogpu/offscreen/internal/render"
	"github.com/gogpu/offscreen/shader"
)

// ErrInvalidConfig is returned by Config.Validate and by everything that
// validates a Config before using it.
var ErrInvalidConfig = errors.New("offscreen: invalid config")

// Config describes one offscreen frame. The toml tags name the keys of a
// job file.
type Config struct {
	// Width and Height are the target size in pixels.
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`

	// ClearColor is the RGBA colour the target is cleared to.
	ClearColor [4]float64 `toml:"clear_color"`

	// Format is the target texture format: rgba8unorm, rgba8unorm-srgb,
	// bgra8unorm or bgra8unorm-srgb.
	Format string `toml:"format"`

	// ShaderPath is a WGSL file. Empty selects the bundled triangle shader
	// (or its uniform variant when Uniforms is set).
	ShaderPath    string `toml:"shader"`
	VertexEntry   string `toml:"vertex_entry"`
	FragmentEntry string `toml:"fragment_entry"`
	VertexCount   uint32 `toml:"vertex_count"`

	// Uniforms binds a ViewUniforms buffer at group 0, binding 0.
	Uniforms bool       `toml:"uniforms"`
	Tint     [4]float32 `toml:"tint"`

	// Output is the image path. The extension selects the encoder.
	Output string `toml:"output"`

	// ArtifactDir receives the shader debug artifacts. Empty disables them.
	ArtifactDir string `toml:"artifact_dir"`

	// Target selects the debug artifact back end: spirv, glsl, msl or hlsl.
	// The pipeline itself always consumes SPIR-V.
	Target string `toml:"target"`

	// Adapter restricts device selection to adapters whose name contains it.
	Adapter string `toml:"adapter"`
}

// DefaultConfig returns a 256x256 sRGB frame cleared to dark grey with the
// bundled triangle drawn on it, written to output.png, with artifacts in
// the working directory.
func DefaultConfig() Config {
	return Config{
		Width:         256,
		Height:        256,
		ClearColor:    [4]float64{0.1, 0.1, 0.1, 1.0},
		Format:        "rgba8unorm-srgb",
		VertexEntry:   "vert_main",
		FragmentEntry: "frag_main",
		VertexCount:   3,
		Tint:          [4]float32{1, 1, 1, 1},
		Output:        "output.png",
		ArtifactDir:   ".",
		Target:        "spirv",
	}
}

var textureFormats = map[string]gputypes.TextureFormat{
	"rgba8unorm":      gputypes.TextureFormatRGBA8Unorm,
	"rgba8unorm-srgb": gputypes.TextureFormatRGBA8UnormSrgb,
	"bgra8unorm":      gputypes.TextureFormatBGRA8Unorm,
	"bgra8unorm-srgb": gputypes.TextureFormatBGRA8UnormSrgb,
}

// TextureFormat resolves Format. Empty means rgba8unorm-srgb.
func (c Config) TextureFormat() (gputypes.TextureFormat, error) {
	name := strings.ToLower(strings.TrimSpace(c.Format))
	if name == "" {
		return gputypes.TextureFormatRGBA8UnormSrgb, nil
	}
	f, ok := textureFormats[name]
	if !ok {
		return gputypes.TextureFormatUndefined, fmt.Errorf("%w: unknown format %q", ErrInvalidConfig, c.Format)
	}
	return f, nil
}

// Validate reports the first problem with c, wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	if c.Width == 0 || c.Height == 0 {
		return fmt.Errorf("%w: size %dx%d", ErrInvalidConfig, c.Width, c.Height)
	}
	if limit := render.MaxTextureDimension(); c.Width > limit || c.Height > limit {
		return fmt.Errorf("%w: size %dx%d exceeds the %d texture limit", ErrInvalidConfig, c.Width, c.Height, limit)
	}
	if _, err := c.TextureFormat(); err != nil {
		return err
	}
	if c.VertexEntry == "" || c.FragmentEntry == "" {
		return fmt.Errorf("%w: vertex and fragment entry points are required", ErrInvalidConfig)
	}
	if _, err := shader.ParseTarget(c.Target); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Output != "" {
		if _, err := output.FormatFromPath(c.Output); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}

func (c Config) clearColor() gputypes.Color {
	return gputypes.Color{R: c.ClearColor[0], G: c.ClearColor[1], B: c.ClearColor[2], A: c.ClearColor[3]}
}
