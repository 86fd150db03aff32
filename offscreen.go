package offscreen

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/offscreen/internal/device"
	"github.com/gogpu/offscreen/internal/output"
	"github.com/gogpu/offscreen/internal/render"
	"github.com/gogpu/offscreen/shader"
)

// ViewUniforms is the uniform block bound when Config.Uniforms is set.
type ViewUniforms = render.ViewUniforms

// DefaultViewUniforms is the identity transform with an opaque white tint.
func DefaultViewUniforms() ViewUniforms { return render.DefaultViewUniforms() }

// Frame is one rendered and read back frame.
type Frame struct {
	Image *image.RGBA
	// Submission is the queue submission index that produced the frame.
	Submission uint64
}

// Renderer owns a device session and everything one frame needs: the
// compiled shader, the pipeline, the target and its readback buffer, and
// optionally a uniform buffer. A Renderer is not safe for concurrent use.
type Renderer struct {
	cfg      Config
	format   gputypes.TextureFormat
	compiled *shader.Compiled
	words    shader.Words

	session  *device.Session
	target   *render.Target
	uniforms *render.UniformBuffer
	pipeline *render.Pipeline

	// inflight holds frames whose readback failed; their command buffers
	// are freed after the device is idle.
	inflight []*render.Submission
}

// NewRenderer compiles the shader, opens a device, starts its poll loop and
// creates the pipeline and target. Shader errors are reported before any
// device is opened.
func NewRenderer(ctx context.Context, cfg Config, opts ...Option) (*Renderer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o runOptions
	for _, opt := range opts {
		opt(&o)
	}
	format, _ := cfg.TextureFormat()
	target, _ := shader.ParseTarget(cfg.Target)

	r := &Renderer{cfg: cfg, format: format}
	if err := r.compile(&o, target); err != nil {
		return nil, err
	}

	devOpts := o.device
	if cfg.Adapter != "" {
		devOpts = append(devOpts, device.WithAdapterName(cfg.Adapter))
	}
	session, err := device.Open(ctx, devOpts...)
	if err != nil {
		return nil, fmt.Errorf("open device: %w", err)
	}
	r.session = session
	session.StartPollLoop()

	if err := r.build(&o); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}

func (r *Renderer) compile(o *runOptions, target shader.Target) error {
	src, err := r.shaderSource(o)
	if err != nil {
		return err
	}

	sink := o.sink
	if sink == nil && r.cfg.ArtifactDir != "" {
		fs, err := output.NewFileSink(r.cfg.ArtifactDir)
		if err != nil {
			return err
		}
		sink = fs
	}

	compiled, err := shader.Compile(src, shader.WithTarget(target), shader.WithSink(sink),
		shader.WithGLSLEntryPoint(r.cfg.VertexEntry))
	if err != nil {
		return fmt.Errorf("compile shader: %w", err)
	}
	r.compiled = compiled

	r.words = compiled.Words
	if target != shader.TargetSPIRV {
		// The device consumes SPIR-V whatever the artifact target is.
		r.words, err = compiled.Validated.SPIRV(shader.SPIRVOptions{})
		if err != nil {
			return fmt.Errorf("compile shader: %w", err)
		}
	}
	return nil
}

func (r *Renderer) shaderSource(o *runOptions) (string, error) {
	switch {
	case o.source != "":
		return o.source, nil
	case r.cfg.ShaderPath != "":
		b, err := os.ReadFile(r.cfg.ShaderPath)
		if err != nil {
			return "", fmt.Errorf("read shader: %w", err)
		}
		return string(b), nil
	case r.cfg.Uniforms:
		return ViewTriangleWGSL, nil
	default:
		return TriangleWGSL, nil
	}
}

func (r *Renderer) build(o *runOptions) error {
	var err error
	r.target, err = render.NewTarget(r.session, r.cfg.Width, r.cfg.Height, r.format)
	if err != nil {
		return err
	}

	pc := render.PipelineConfig{
		Label:         "offscreen",
		Shader:        r.compiled.Validated,
		Words:         r.words,
		VertexEntry:   r.cfg.VertexEntry,
		FragmentEntry: r.cfg.FragmentEntry,
		ColorFormat:   r.format,
	}

	if r.cfg.Uniforms {
		u := DefaultViewUniforms()
		u.Tint = r.cfg.Tint
		if o.transform != nil {
			u.Transform = *o.transform
		}
		r.uniforms, err = render.NewUniformBuffer(r.session.HalDevice(), r.session.HalQueue(), "view",
			u.Bytes(), render.ViewUniformsSize, gputypes.ShaderStageVertex|gputypes.ShaderStageFragment)
		if err != nil {
			return err
		}
		pc.BindGroupLayouts = append(pc.BindGroupLayouts, r.uniforms.Layout())
	}

	r.pipeline, err = render.BuildPipeline(r.session.HalDevice(), pc)
	return err
}

// Compiled returns the compiled shader, including any artifact write errors.
func (r *Renderer) Compiled() *shader.Compiled { return r.compiled }

// AdapterInfo describes the adapter the renderer runs on.
func (r *Renderer) AdapterInfo() gpucontext.AdapterInfo { return r.session.AdapterInfo() }

// SetViewUniforms replaces the uniform block for subsequent frames. It
// fails unless Config.Uniforms was set.
func (r *Renderer) SetViewUniforms(u ViewUniforms) error {
	if r.uniforms == nil {
		return errors.New("offscreen: renderer has no uniform buffer")
	}
	return r.uniforms.Update(r.session.HalQueue(), u.Bytes())
}

// Render draws one frame, waits for the readback and returns the image.
// The wait ends early when ctx is done.
func (r *Renderer) Render(ctx context.Context) (*Frame, error) {
	spec := render.FrameSpec{
		Pipeline:    r.pipeline,
		Target:      r.target,
		VertexCount: r.cfg.VertexCount,
		ClearColor:  r.cfg.clearColor(),
	}
	if r.uniforms != nil {
		spec.BindGroup = r.uniforms.BindGroup()
	}

	sub, err := render.RenderFrame(r.session, spec)
	if err != nil {
		return nil, err
	}
	img, err := r.target.ReadImage(ctx)
	if err != nil {
		// The command buffer may still be in flight; Close frees it once
		// the device is idle.
		r.inflight = append(r.inflight, sub)
		return nil, err
	}
	sub.Release()
	return &Frame{Image: img, Submission: sub.Index}, nil
}

// Close stops the poll loop, waits for the device to go idle, releases GPU
// objects and closes the device. Safe to call more than once.
func (r *Renderer) Close() error {
	if r.session != nil {
		// Errors resurface from Session.Close below.
		_ = r.session.Drain()
	}
	for _, sub := range r.inflight {
		sub.Release()
	}
	r.inflight = nil
	if r.pipeline != nil {
		r.pipeline.Destroy()
		r.pipeline = nil
	}
	if r.uniforms != nil {
		r.uniforms.Destroy()
		r.uniforms = nil
	}
	if r.target != nil {
		r.target.Destroy()
		r.target = nil
	}
	if r.session == nil {
		return nil
	}
	err := r.session.Close()
	r.session = nil
	return err
}

// Result is what Run produced.
type Result struct {
	Image      *image.RGBA
	OutputPath string
	Adapter    gpucontext.AdapterInfo
	Submission uint64

	// ArtifactErrors are shader artifact writes that failed. They do not
	// fail the run.
	ArtifactErrors []error
}

// Run renders one frame as described by cfg and writes it to cfg.Output
// when that is set. The device and its poll loop are shut down before Run
// returns, on every path.
func Run(ctx context.Context, cfg Config, opts ...Option) (res *Result, err error) {
	r, err := NewRenderer(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := r.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close renderer: %w", cerr)
		}
	}()

	frame, err := r.Render(ctx)
	if err != nil {
		return nil, err
	}
	res = &Result{
		Image:          frame.Image,
		Adapter:        r.AdapterInfo(),
		Submission:     frame.Submission,
		ArtifactErrors: r.Compiled().ArtifactErrors,
	}
	if cfg.Output != "" {
		if err := output.WriteImage(cfg.Output, frame.Image); err != nil {
			return nil, err
		}
		res.OutputPath = cfg.Output
	}
	Logger().Info("offscreen: frame done",
		"adapter", res.Adapter.Name,
		"width", cfg.Width,
		"height", cfg.Height,
		"output", res.OutputPath,
		"submission", res.Submission)
	return res, nil
}
