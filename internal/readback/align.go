// Package readback copies rendered textures out of padded GPU buffers into
// tightly packed host images.
//
// Texture-to-buffer copies require every row in the destination buffer to
// start on a device-mandated byte alignment (256 on Vulkan, Metal, DX12 and
// WebGPU). A readback buffer is therefore laid out with a padded row pitch,
// and the padding has to be stripped row by row before the pixels can be
// encoded as an image.
package readback

import (
	"errors"
	"fmt"
	"math"
)

// ErrSizeOverflow is returned when a row pitch or buffer size does not fit
// its integer type.
var ErrSizeOverflow = errors.New("readback: size overflows")

// BytesPerPixel is the size of one RGBA8 texel.
const BytesPerPixel = 4

// CopyPitchAlignment is the row alignment required for texture-to-buffer copies.
const CopyPitchAlignment = 256

// SmallestMultipleContaining returns the smallest multiple of base that is
// greater than or equal to value. It panics if base is zero or if that
// multiple does not fit in a uint32.
func SmallestMultipleContaining(value, base uint32) uint32 {
	if base == 0 {
		panic("readback: zero alignment base")
	}
	m, ok := multipleContaining(uint64(value), uint64(base))
	if !ok || m > math.MaxUint32 {
		panic(fmt.Sprintf("readback: multiple of %d containing %d overflows uint32", base, value))
	}
	return uint32(m)
}

func multipleContaining(value, base uint64) (uint64, bool) {
	rem := value % base
	if rem == 0 {
		return value, true
	}
	pad := base - rem
	if value > math.MaxUint64-pad {
		return 0, false
	}
	return value + pad, true
}

// PaddedRowBytes returns the aligned row pitch for a texture of the given
// width, using alignment as the device row alignment. It fails with
// ErrSizeOverflow when the pitch does not fit in a uint32.
func PaddedRowBytes(width, alignment uint32) (uint32, error) {
	if alignment == 0 {
		return 0, fmt.Errorf("readback: zero row alignment")
	}
	m, _ := multipleContaining(uint64(width)*BytesPerPixel, uint64(alignment))
	if m > math.MaxUint32 {
		return 0, fmt.Errorf("%w: row pitch for width %d", ErrSizeOverflow, width)
	}
	return uint32(m), nil
}

// BufferSize returns the readback buffer size for a width x height RGBA8
// texture copied with the given row alignment.
func BufferSize(width, height, alignment uint32) (uint64, error) {
	padded, err := PaddedRowBytes(width, alignment)
	if err != nil {
		return 0, err
	}
	// A uint32 pitch times a uint32 height always fits in 64 bits.
	return uint64(padded) * uint64(height), nil
}
