package render

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/offscreen/internal/readback"
)

// FrameSpec describes one frame.
type FrameSpec struct {
	Label    string
	Pipeline *Pipeline
	Target   *Target
	// BindGroup is bound at group 0 when set.
	BindGroup   hal.BindGroup
	VertexCount uint32
	ClearColor  gputypes.Color
}

// Submission is a recorded frame handed to the queue.
type Submission struct {
	// Index is the queue's submission index for the frame.
	Index uint64

	device  hal.Device
	encoder hal.CommandEncoder
	cmd     hal.CommandBuffer
}

// Release frees the command buffer and its encoder. Call it only after the
// submission has completed, for example once the target has been read back.
func (s *Submission) Release() {
	if s.cmd != nil {
		s.device.FreeCommandBuffer(s.cmd)
		s.cmd = nil
	}
	if s.encoder != nil {
		s.encoder.Destroy()
		s.encoder = nil
	}
}

// RenderFrame records and submits one frame: a render pass that clears the
// target and draws VertexCount vertices with the pipeline, then a copy of
// the target into its readback buffer with padded rows. It does not wait
// for the GPU.
func RenderFrame(s Session, spec FrameSpec) (*Submission, error) {
	if spec.Pipeline == nil || spec.Pipeline.Raw() == nil {
		return nil, errors.New("render: frame needs a pipeline")
	}
	if spec.Target == nil || spec.Target.readback == nil {
		return nil, errors.New("render: frame needs a target")
	}
	label := spec.Label
	if label == "" {
		label = "offscreen_frame"
	}
	device := s.HalDevice()
	target := spec.Target

	encoder, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		encoder.Destroy()
		return nil, fmt.Errorf("begin encoding: %w", err)
	}

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: label + "_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{
			{
				View:       target.view,
				LoadOp:     gputypes.LoadOpClear,
				StoreOp:    gputypes.StoreOpStore,
				ClearValue: spec.ClearColor,
			},
		},
	})
	rp.SetPipeline(spec.Pipeline.Raw())
	if spec.BindGroup != nil {
		rp.SetBindGroup(0, spec.BindGroup, nil)
	}
	rp.Draw(spec.VertexCount, 1, 0, 0)
	rp.End()

	encoder.TransitionTextures([]hal.TextureBarrier{
		{
			Texture: target.texture,
			Usage: hal.TextureUsageTransition{
				OldUsage: gputypes.TextureUsageRenderAttachment,
				NewUsage: gputypes.TextureUsageCopySrc,
			},
		},
	})
	encoder.CopyTextureToBuffer(target.texture, target.readback.Raw(), []hal.BufferTextureCopy{
		{
			BufferLayout: hal.ImageDataLayout{
				Offset:       0,
				BytesPerRow:  target.paddedRowBytes,
				RowsPerImage: target.height,
			},
			TextureBase: hal.ImageCopyTexture{
				Texture:  target.texture,
				MipLevel: 0,
			},
			Size: hal.Extent3D{
				Width:              target.width,
				Height:             target.height,
				DepthOrArrayLayers: 1,
			},
		},
	})

	cmd, err := encoder.EndEncoding()
	if err != nil {
		encoder.DiscardEncoding()
		encoder.Destroy()
		return nil, fmt.Errorf("end encoding: %w", err)
	}

	sub := &Submission{device: device, encoder: encoder, cmd: cmd}
	index, err := s.Submit(cmd)
	if err != nil {
		sub.Release()
		return nil, err
	}
	sub.Index = index

	slogger().Debug("render: frame submitted",
		"index", index,
		"vertices", spec.VertexCount,
		"bytes_per_row", target.paddedRowBytes,
		"unpadded_row_bytes", target.width*readback.BytesPerPixel)
	return sub, nil
}
