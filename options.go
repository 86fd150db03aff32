package offscreen

import (
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/offscreen/internal/device"
	"github.com/gogpu/offscreen/shader"
)

// InstanceFactory creates HAL instances. Every registered hal.Backend
// satisfies it, as does the noop API used in tests.
type InstanceFactory = device.InstanceFactory

// Option configures NewRenderer and Run.
//
// Example:
//
//	// Render through the noop backend, keeping artifacts in memory.
//	sink := shader.NewMemorySink()
//	res, err := offscreen.Run(ctx, cfg,
//	    offscreen.WithInstanceFactory(&noop.API{}),
//	    offscreen.WithArtifactSink(sink))
type Option func(*runOptions)

type runOptions struct {
	device    []device.Option
	sink      shader.Sink
	source    string
	transform *mgl32.Mat4
}

// WithBackend selects the HAL backend. Default: Vulkan.
func WithBackend(b gputypes.Backend) Option {
	return func(o *runOptions) {
		o.device = append(o.device, device.WithBackend(b))
	}
}

// WithInstanceFactory bypasses the backend registry.
func WithInstanceFactory(f InstanceFactory) Option {
	return func(o *runOptions) {
		o.device = append(o.device, device.WithInstanceFactory(f))
	}
}

// WithLowPower prefers integrated adapters over discrete ones.
func WithLowPower() Option {
	return func(o *runOptions) {
		o.device = append(o.device, device.WithPowerPreference(device.PowerLowPower))
	}
}

// WithWaitTimeout bounds each blocking device wait. Default: 5s.
func WithWaitTimeout(d time.Duration) Option {
	return func(o *runOptions) {
		o.device = append(o.device, device.WithWaitTimeout(d))
	}
}

// WithArtifactSink sends shader debug artifacts to s instead of files in
// Config.ArtifactDir.
func WithArtifactSink(s shader.Sink) Option {
	return func(o *runOptions) {
		o.sink = s
	}
}

// WithShaderSource uses WGSL source text instead of Config.ShaderPath or
// the bundled shaders.
func WithShaderSource(src string) Option {
	return func(o *runOptions) {
		o.source = src
	}
}

// WithTransform sets the initial view transform when Config.Uniforms is
// set. Default: identity.
func WithTransform(m mgl32.Mat4) Option {
	return func(o *runOptions) {
		o.transform = &m
	}
}
