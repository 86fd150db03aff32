// Package render builds the GPU objects for a single offscreen frame and
// records the frame: render pipeline, uniform binding, colour target with
// its readback buffer, and the command buffer that draws and copies.
package render

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/offscreen/shader"
)

// ErrEntryPointNotFound is returned when a configured entry point is not
// present in the shader module for the expected stage.
var ErrEntryPointNotFound = errors.New("render: entry point not found")

// PipelineCreationError reports that the device rejected one of the objects
// that make up a render pipeline.
type PipelineCreationError struct {
	// Object names the object that failed: "shader module", "pipeline layout"
	// or "render pipeline".
	Object string
	Label  string
	Err    error
}

func (e *PipelineCreationError) Error() string {
	return fmt.Sprintf("render: create %s %q: %v", e.Object, e.Label, e.Err)
}

func (e *PipelineCreationError) Unwrap() error { return e.Err }

// PipelineConfig describes a render pipeline.
type PipelineConfig struct {
	Label string

	// Shader is the validated module the entry points are checked against.
	Shader *shader.ValidatedModule
	// Words is the module lowered to SPIR-V.
	Words shader.Words

	VertexEntry   string
	FragmentEntry string
	ColorFormat   gputypes.TextureFormat

	// BindGroupLayouts become the pipeline layout, in group order.
	BindGroupLayouts []hal.BindGroupLayout
}

// Pipeline owns a shader module, a pipeline layout and the render pipeline
// built from them.
//
// The fixed-function state is the same for every pipeline: triangle list,
// counter-clockwise front faces with back faces culled, one sample, replace
// blending, all channels written, no depth or stencil.
type Pipeline struct {
	device hal.Device
	label  string

	module   hal.ShaderModule
	layout   hal.PipelineLayout
	pipeline hal.RenderPipeline
}

// BuildPipeline checks the entry points and creates the pipeline. Nothing is
// created when an entry point is missing.
func BuildPipeline(device hal.Device, cfg PipelineConfig) (*Pipeline, error) {
	if device == nil {
		return nil, errors.New("render: device is nil")
	}
	if cfg.Shader == nil || len(cfg.Words) == 0 {
		return nil, errors.New("render: pipeline needs a validated module and its SPIR-V")
	}
	if !cfg.Shader.HasEntryPoint(cfg.VertexEntry, ir.StageVertex) {
		return nil, fmt.Errorf("%w: vertex %q", ErrEntryPointNotFound, cfg.VertexEntry)
	}
	if !cfg.Shader.HasEntryPoint(cfg.FragmentEntry, ir.StageFragment) {
		return nil, fmt.Errorf("%w: fragment %q", ErrEntryPointNotFound, cfg.FragmentEntry)
	}

	p := &Pipeline{device: device, label: cfg.Label}

	module, err := CreateShaderModule(device, cfg.Label+"_shader", cfg.Words)
	if err != nil {
		return nil, err
	}
	p.module = module

	layout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            cfg.Label + "_layout",
		BindGroupLayouts: cfg.BindGroupLayouts,
	})
	if err != nil {
		p.Destroy()
		return nil, &PipelineCreationError{Object: "pipeline layout", Label: cfg.Label + "_layout", Err: err}
	}
	p.layout = layout

	blend := gputypes.BlendStateReplace()
	pipeline, err := device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  cfg.Label,
		Layout: p.layout,
		Vertex: hal.VertexState{
			Module:     p.module,
			EntryPoint: cfg.VertexEntry,
		},
		Fragment: &hal.FragmentState{
			Module:     p.module,
			EntryPoint: cfg.FragmentEntry,
			Targets: []gputypes.ColorTargetState{
				{
					Format:    cfg.ColorFormat,
					Blend:     &blend,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology:  gputypes.PrimitiveTopologyTriangleList,
			FrontFace: gputypes.FrontFaceCCW,
			CullMode:  gputypes.CullModeBack,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		p.Destroy()
		return nil, &PipelineCreationError{Object: "render pipeline", Label: cfg.Label, Err: err}
	}
	p.pipeline = pipeline

	slogger().Debug("render: pipeline created",
		"label", cfg.Label,
		"vertex", cfg.VertexEntry,
		"fragment", cfg.FragmentEntry,
		"format", cfg.ColorFormat)
	return p, nil
}

// CreateShaderModule uploads SPIR-V words to the device.
func CreateShaderModule(device hal.Device, label string, words shader.Words) (hal.ShaderModule, error) {
	module, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{SPIRV: words},
	})
	if err != nil {
		return nil, &PipelineCreationError{Object: "shader module", Label: label, Err: err}
	}
	return module, nil
}

// Raw returns the render pipeline handle.
func (p *Pipeline) Raw() hal.RenderPipeline { return p.pipeline }

// Label returns the pipeline's debug label.
func (p *Pipeline) Label() string { return p.label }

// Destroy releases the pipeline objects in reverse creation order. Safe to
// call more than once.
func (p *Pipeline) Destroy() {
	if p.pipeline != nil {
		p.device.DestroyRenderPipeline(p.pipeline)
		p.pipeline = nil
	}
	if p.layout != nil {
		p.device.DestroyPipelineLayout(p.layout)
		p.layout = nil
	}
	if p.module != nil {
		p.device.DestroyShaderModule(p.module)
		p.module = nil
	}
}
