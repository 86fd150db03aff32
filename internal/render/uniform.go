package render

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// ErrUniformTooSmall is returned when a uniform payload is smaller than the
// layout's minimum binding size.
var ErrUniformTooSmall = errors.New("render: uniform payload smaller than min binding size")

// ViewUniformsSize is the encoded size of ViewUniforms.
const ViewUniformsSize = 80

// ViewUniforms is the uniform block of the bundled view shader:
//
//	struct View {
//	    transform: mat4x4<f32>,
//	    tint: vec4<f32>,
//	}
type ViewUniforms struct {
	Transform mgl32.Mat4
	Tint      [4]float32
}

// DefaultViewUniforms is the identity transform with an opaque white tint.
func DefaultViewUniforms() ViewUniforms {
	return ViewUniforms{Transform: mgl32.Ident4(), Tint: [4]float32{1, 1, 1, 1}}
}

// Bytes encodes u as WGSL lays it out: the matrix column-major, then the
// tint, all little-endian.
func (u ViewUniforms) Bytes() []byte {
	out := make([]byte, ViewUniformsSize)
	off := 0
	for _, f := range u.Transform {
		binary.LittleEndian.PutUint32(out[off:], math.Float32bits(f))
		off += 4
	}
	for _, f := range u.Tint {
		binary.LittleEndian.PutUint32(out[off:], math.Float32bits(f))
		off += 4
	}
	return out
}

// UniformBuffer is a uniform buffer at binding 0 of its own bind group,
// together with the layout describing it.
type UniformBuffer struct {
	device hal.Device
	label  string
	size   uint64

	layout hal.BindGroupLayout
	buffer hal.Buffer
	group  hal.BindGroup
}

// NewUniformBuffer creates the layout, the buffer and the bind group, and
// uploads payload. The payload must be at least minBindingSize bytes.
func NewUniformBuffer(device hal.Device, queue hal.Queue, label string, payload []byte,
	minBindingSize uint64, visibility gputypes.ShaderStages) (*UniformBuffer, error) {
	if device == nil || queue == nil {
		return nil, errors.New("render: device and queue are required")
	}
	size := uint64(len(payload))
	if size == 0 || size < minBindingSize {
		return nil, fmt.Errorf("%w: %d < %d", ErrUniformTooSmall, size, minBindingSize)
	}

	u := &UniformBuffer{device: device, label: label, size: size}

	layout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: label + "_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: visibility,
				Buffer: &gputypes.BufferBindingLayout{
					Type:           gputypes.BufferBindingTypeUniform,
					MinBindingSize: minBindingSize,
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create uniform layout %s: %w", label, err)
	}
	u.layout = layout

	buffer, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		u.Destroy()
		return nil, fmt.Errorf("create uniform buffer %s: %w", label, err)
	}
	u.buffer = buffer

	if err := queue.WriteBuffer(buffer, 0, payload); err != nil {
		u.Destroy()
		return nil, fmt.Errorf("write uniform buffer %s: %w", label, err)
	}

	group, err := device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  label + "_bind_group",
		Layout: layout,
		Entries: []gputypes.BindGroupEntry{
			{
				Binding: 0,
				Resource: gputypes.BufferBinding{
					Buffer: buffer.NativeHandle(),
					Offset: 0,
					Size:   size,
				},
			},
		},
	})
	if err != nil {
		u.Destroy()
		return nil, fmt.Errorf("create uniform bind group %s: %w", label, err)
	}
	u.group = group

	slogger().Debug("render: uniform buffer created", "label", label, "size", size)
	return u, nil
}

// Layout returns the bind group layout, for PipelineConfig.BindGroupLayouts.
func (u *UniformBuffer) Layout() hal.BindGroupLayout { return u.layout }

// BindGroup returns the bind group, for FrameSpec.BindGroup.
func (u *UniformBuffer) BindGroup() hal.BindGroup { return u.group }

// Size returns the buffer size in bytes.
func (u *UniformBuffer) Size() uint64 { return u.size }

// Update overwrites the buffer contents. The payload must have the size the
// buffer was created with.
func (u *UniformBuffer) Update(queue hal.Queue, payload []byte) error {
	if uint64(len(payload)) != u.size {
		return fmt.Errorf("render: uniform %s update is %d bytes, buffer is %d", u.label, len(payload), u.size)
	}
	if err := queue.WriteBuffer(u.buffer, 0, payload); err != nil {
		return fmt.Errorf("write uniform buffer %s: %w", u.label, err)
	}
	return nil
}

// Destroy releases the bind group, buffer and layout. Safe to call more
// than once.
func (u *UniformBuffer) Destroy() {
	if u.group != nil {
		u.device.DestroyBindGroup(u.group)
		u.group = nil
	}
	if u.buffer != nil {
		u.device.DestroyBuffer(u.buffer)
		u.buffer = nil
	}
	if u.layout != nil {
		u.device.DestroyBindGroupLayout(u.layout)
		u.layout = nil
	}
}
