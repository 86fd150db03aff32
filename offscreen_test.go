package offscreen

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/offscreen/internal/device"
	"github.com/gogpu/offscreen/shader"
)

// countingFactory counts instance creations on the noop API.
type countingFactory struct {
	calls int
}

func (f *countingFactory) CreateInstance(desc *hal.InstanceDescriptor) (hal.Instance, error) {
	f.calls++
	return noop.API{}.CreateInstance(desc)
}

func noopConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Output = filepath.Join(dir, "output.png")
	cfg.ArtifactDir = filepath.Join(dir, "artifacts")
	return cfg
}

func TestRunNoop(t *testing.T) {
	cfg := noopConfig(t)
	res, err := Run(context.Background(), cfg, WithInstanceFactory(&noop.API{}))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if b := res.Image.Bounds(); b.Dx() != 256 || b.Dy() != 256 {
		t.Errorf("image bounds = %v, want 256x256", b)
	}
	if res.OutputPath != cfg.Output {
		t.Errorf("OutputPath = %q, want %q", res.OutputPath, cfg.Output)
	}
	if res.Adapter.Name != "Noop Adapter" {
		t.Errorf("Adapter.Name = %q", res.Adapter.Name)
	}
	if res.Submission == 0 {
		t.Error("submission index is zero")
	}
	if len(res.ArtifactErrors) != 0 {
		t.Errorf("artifact errors: %v", res.ArtifactErrors)
	}
	for _, name := range []string{cfg.Output, filepath.Join(cfg.ArtifactDir, shader.ArtifactDump), filepath.Join(cfg.ArtifactDir, shader.ArtifactSPIRV)} {
		if _, err := os.Stat(name); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
}

func TestRunBackendRegistry(t *testing.T) {
	cfg := noopConfig(t)
	cfg.Output = ""
	cfg.ArtifactDir = ""
	res, err := Run(context.Background(), cfg, WithBackend(gputypes.BackendEmpty))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.OutputPath != "" {
		t.Errorf("OutputPath = %q, want empty", res.OutputPath)
	}
}

func TestRunUniformsGLSLArtifacts(t *testing.T) {
	cfg := noopConfig(t)
	cfg.Uniforms = true
	cfg.Target = "glsl"
	cfg.Format = "bgra8unorm"
	cfg.Output = filepath.Join(filepath.Dir(cfg.Output), "frame.bmp")
	sink := shader.NewMemorySink()

	res, err := Run(context.Background(), cfg,
		WithInstanceFactory(&noop.API{}),
		WithArtifactSink(sink),
		WithTransform(mgl32.Scale3D(0.5, 0.5, 1)))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Image == nil {
		t.Fatal("no image")
	}

	glsl, ok := sink.Get(shader.ArtifactGLSL)
	if !ok {
		t.Fatalf("artifacts = %v, want %s", sink.Names(), shader.ArtifactGLSL)
	}
	if !strings.HasPrefix(string(glsl), "#version") {
		t.Errorf("debug.glsl does not start with #version: %.40q", glsl)
	}
	if _, ok := sink.Get(shader.ArtifactSPIRV); ok {
		t.Error("SPIR-V artifact written for a GLSL target")
	}
	if _, err := os.Stat(filepath.Join(cfg.ArtifactDir, shader.ArtifactDump)); !os.IsNotExist(err) {
		t.Error("artifact dir used although a sink was given")
	}
}

func TestNewRendererCompileErrorOpensNoDevice(t *testing.T) {
	f := &countingFactory{}
	cfg := noopConfig(t)
	_, err := NewRenderer(context.Background(), cfg,
		WithInstanceFactory(f),
		WithShaderSource("@vertex fn vert_main() -> @builtin(position) vec4<f32> { return undefined_value; }"))
	if !shader.IsCompileError(err) {
		t.Fatalf("err = %v, want a compile error", err)
	}
	if f.calls != 0 {
		t.Errorf("device opened %d times for a broken shader", f.calls)
	}
}

func TestNewRendererMissingEntryPoint(t *testing.T) {
	cfg := noopConfig(t)
	cfg.FragmentEntry = "fs_main"
	_, err := NewRenderer(context.Background(), cfg, WithInstanceFactory(&noop.API{}))
	if err == nil || !strings.Contains(err.Error(), "fs_main") {
		t.Fatalf("err = %v, want a missing entry point error", err)
	}
}

func TestRendererRendersRepeatedly(t *testing.T) {
	cfg := noopConfig(t)
	cfg.Uniforms = true
	cfg.ArtifactDir = ""
	r, err := NewRenderer(context.Background(), cfg, WithInstanceFactory(&noop.API{}))
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first, err := r.Render(ctx)
	if err != nil {
		t.Fatalf("first Render: %v", err)
	}
	u := DefaultViewUniforms()
	u.Tint = [4]float32{1, 0, 0, 1}
	if err := r.SetViewUniforms(u); err != nil {
		t.Fatalf("SetViewUniforms: %v", err)
	}
	second, err := r.Render(ctx)
	if err != nil {
		t.Fatalf("second Render: %v", err)
	}
	if second.Submission <= first.Submission {
		t.Errorf("submission indices %d then %d, want increasing", first.Submission, second.Submission)
	}

	if err := r.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestSetViewUniformsWithoutUniforms(t *testing.T) {
	cfg := noopConfig(t)
	cfg.ArtifactDir = ""
	r, err := NewRenderer(context.Background(), cfg, WithInstanceFactory(&noop.API{}))
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	defer r.Close()
	if err := r.SetViewUniforms(DefaultViewUniforms()); err == nil {
		t.Error("SetViewUniforms succeeded without a uniform buffer")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero width", func(c *Config) { c.Width = 0 }},
		{"zero height", func(c *Config) { c.Height = 0 }},
		{"width past pitch overflow", func(c *Config) { c.Width = 1<<30 + 1 }},
		{"height over texture limit", func(c *Config) { c.Height = 8193 }},
		{"unknown format", func(c *Config) { c.Format = "rgba16float" }},
		{"no vertex entry", func(c *Config) { c.VertexEntry = "" }},
		{"no fragment entry", func(c *Config) { c.FragmentEntry = "" }},
		{"unknown target", func(c *Config) { c.Target = "dxil" }},
		{"unknown output", func(c *Config) { c.Output = "frame.jpg" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}
}

func TestConfigTextureFormat(t *testing.T) {
	tests := map[string]gputypes.TextureFormat{
		"":                gputypes.TextureFormatRGBA8UnormSrgb,
		"rgba8unorm":      gputypes.TextureFormatRGBA8Unorm,
		"RGBA8Unorm-sRGB": gputypes.TextureFormatRGBA8UnormSrgb,
		"bgra8unorm":      gputypes.TextureFormatBGRA8Unorm,
		"bgra8unorm-srgb": gputypes.TextureFormatBGRA8UnormSrgb,
	}
	for name, want := range tests {
		got, err := Config{Format: name}.TextureFormat()
		if err != nil {
			t.Errorf("TextureFormat(%q): %v", name, err)
			continue
		}
		if got != want {
			t.Errorf("TextureFormat(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestBundledShadersCompile(t *testing.T) {
	for name, src := range map[string]string{"triangle": TriangleWGSL, "view_triangle": ViewTriangleWGSL} {
		c, err := shader.Compile(src)
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		if !c.Validated.HasEntryPoint("vert_main", ir.StageVertex) || !c.Validated.HasEntryPoint("frag_main", ir.StageFragment) {
			t.Errorf("%s: missing vert_main or frag_main", name)
		}
		if len(c.Words) == 0 {
			t.Errorf("%s: no SPIR-V", name)
		}
	}
}

// openVulkan skips the test when no Vulkan adapter can be opened.
func openVulkan(t *testing.T) {
	t.Helper()
	s, err := device.Open(context.Background())
	if err != nil {
		if errors.Is(err, device.ErrNoBackend) || errors.Is(err, device.ErrNoAdapter) || errors.Is(err, device.ErrDeviceRequest) {
			t.Skipf("no Vulkan adapter: %v", err)
		}
		t.Fatalf("device.Open: %v", err)
	}
	_ = s.Close()
}

func TestRunVulkanClearColor(t *testing.T) {
	openVulkan(t)

	sizes := []struct{ w, h uint32 }{{256, 256}, {907, 64}}
	for _, sz := range sizes {
		cfg := noopConfig(t)
		cfg.Width, cfg.Height = sz.w, sz.h
		cfg.Format = "rgba8unorm"
		cfg.ClearColor = [4]float64{0, 1, 0, 1}
		cfg.VertexCount = 0
		cfg.Output = ""

		res, err := Run(context.Background(), cfg)
		if err != nil {
			t.Fatalf("%dx%d: Run: %v", sz.w, sz.h, err)
		}
		img := res.Image
		if b := img.Bounds(); b.Dx() != int(sz.w) || b.Dy() != int(sz.h) {
			t.Fatalf("%dx%d: bounds %v", sz.w, sz.h, b)
		}
		for i := 0; i < len(img.Pix); i += 4 {
			if img.Pix[i] != 0 || img.Pix[i+1] != 255 || img.Pix[i+2] != 0 || img.Pix[i+3] != 255 {
				x, y := (i/4)%int(sz.w), (i/4)/int(sz.w)
				t.Fatalf("%dx%d: pixel (%d,%d) = %v, want opaque green", sz.w, sz.h, x, y, img.Pix[i:i+4])
			}
		}
	}
}

func TestRunVulkanDrawsTriangle(t *testing.T) {
	openVulkan(t)

	cfg := noopConfig(t)
	cfg.Format = "rgba8unorm"
	cfg.ClearColor = [4]float64{0, 1, 0, 1}
	cfg.Output = ""

	res, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// The triangle covers the centre of clip space; culling it would leave
	// only the clear colour.
	c := res.Image.RGBAAt(int(cfg.Width)/2, int(cfg.Height)/2)
	if c.R == 0 && c.G == 255 && c.B == 0 {
		t.Errorf("centre pixel = %v, want the triangle colour", c)
	}
}
