package render

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/offscreen/internal/readback"
)

var (
	// ErrUnsupportedFormat is returned for colour formats that are not
	// 4-byte RGBA or BGRA.
	ErrUnsupportedFormat = errors.New("render: unsupported target format")

	// ErrTargetTooLarge is returned when a target side exceeds the
	// device's 2D texture limit.
	ErrTargetTooLarge = errors.New("render: target too large")
)

// MaxTextureDimension is the largest target width or height. Devices are
// opened with the default limits, so this is their 2D texture limit.
func MaxTextureDimension() uint32 {
	return gputypes.DefaultLimits().MaxTextureDimension2D
}

// Session is what the frame renderer needs from a device session.
// *device.Session implements it.
type Session interface {
	readback.Mapper
	HalDevice() hal.Device
	RowAlignment() uint32
	Submit(cmds ...hal.CommandBuffer) (uint64, error)
}

// Target is an offscreen colour texture and the host-readable buffer its
// contents are copied into. Rows in the buffer are padded to the session's
// row alignment.
type Target struct {
	device hal.Device

	width  uint32
	height uint32
	format gputypes.TextureFormat

	texture hal.Texture
	view    hal.TextureView

	paddedRowBytes uint32
	readback       *readback.Buffer
}

// NewTarget creates a width x height texture usable as a render attachment
// and copy source, its view, and a readback buffer sized for the padded copy.
func NewTarget(s Session, width, height uint32, format gputypes.TextureFormat) (*Target, error) {
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("render: invalid target size %dx%d", width, height)
	}
	if limit := MaxTextureDimension(); width > limit || height > limit {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d", ErrTargetTooLarge, width, height, limit)
	}
	if !supportedFormat(format) {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, format)
	}
	padded, err := readback.PaddedRowBytes(width, s.RowAlignment())
	if err != nil {
		return nil, err
	}
	size, err := readback.BufferSize(width, height, s.RowAlignment())
	if err != nil {
		return nil, err
	}
	device := s.HalDevice()
	t := &Target{
		device:         device,
		width:          width,
		height:         height,
		format:         format,
		paddedRowBytes: padded,
	}

	texture, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         "offscreen_target",
		Size:          hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("create target texture: %w", err)
	}
	t.texture = texture

	view, err := device.CreateTextureView(texture, &hal.TextureViewDescriptor{
		Label: "offscreen_target_view",
	})
	if err != nil {
		t.Destroy()
		return nil, fmt.Errorf("create target view: %w", err)
	}
	t.view = view

	buf, err := readback.NewBuffer(device, s, "offscreen_readback", size)
	if err != nil {
		t.Destroy()
		return nil, err
	}
	t.readback = buf

	slogger().Debug("render: target created",
		"width", width,
		"height", height,
		"format", format,
		"padded_row_bytes", t.paddedRowBytes,
		"readback_bytes", size)
	return t, nil
}

func supportedFormat(f gputypes.TextureFormat) bool {
	switch f {
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatRGBA8UnormSrgb,
		gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatBGRA8UnormSrgb:
		return true
	}
	return false
}

func isBGRA(f gputypes.TextureFormat) bool {
	return f == gputypes.TextureFormatBGRA8Unorm || f == gputypes.TextureFormatBGRA8UnormSrgb
}

// Width returns the target width in pixels.
func (t *Target) Width() uint32 { return t.width }

// Height returns the target height in pixels.
func (t *Target) Height() uint32 { return t.height }

// Format returns the texture format.
func (t *Target) Format() gputypes.TextureFormat { return t.format }

// PaddedRowBytes returns the row stride of the readback buffer.
func (t *Target) PaddedRowBytes() uint32 { return t.paddedRowBytes }

// Readback returns the readback buffer.
func (t *Target) Readback() *readback.Buffer { return t.readback }

// ReadImage maps the readback buffer and returns the unpadded image. A frame
// copying into the target must have been submitted and the session's poll
// loop must be running. BGRA targets are swizzled to RGBA.
func (t *Target) ReadImage(ctx context.Context) (*image.RGBA, error) {
	img, err := readback.ReadBack(ctx, t.readback, t.paddedRowBytes, t.width, t.height)
	if err != nil {
		return nil, err
	}
	if isBGRA(t.format) {
		for i := 0; i+3 < len(img.Pix); i += 4 {
			img.Pix[i], img.Pix[i+2] = img.Pix[i+2], img.Pix[i]
		}
	}
	return img, nil
}

// Destroy releases the readback buffer, view and texture. Safe to call more
// than once.
func (t *Target) Destroy() {
	if t.readback != nil {
		t.readback.Destroy()
		t.readback = nil
	}
	if t.view != nil {
		t.device.DestroyTextureView(t.view)
		t.view = nil
	}
	if t.texture != nil {
		t.device.DestroyTexture(t.texture)
		t.texture = nil
	}
}
