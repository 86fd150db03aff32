package readback

import (
	"context"
	"fmt"
	"image"
)

// ReadBack maps buf, waits for the mapping to resolve, and unpacks a
// width x height RGBA8 image whose rows are paddedRowBytes apart.
//
// Waiting on the mapping is the only suspension point; it resolves only
// while a poll loop drives the session that owns buf. Without one, and with
// a context that is never cancelled, ReadBack blocks forever.
//
// The buffer is unmapped exactly once before ReadBack returns, on every path.
func ReadBack(ctx context.Context, buf *Buffer, paddedRowBytes, width, height uint32) (*image.RGBA, error) {
	rowBytes := int(width) * BytesPerPixel
	need := uint64(paddedRowBytes) * uint64(height)
	if need > buf.Size() {
		return nil, &RegionError{Reason: fmt.Sprintf("source: need %d bytes, buffer holds %d", need, buf.Size())}
	}
	if rowBytes > int(paddedRowBytes) {
		return nil, &RegionError{Reason: fmt.Sprintf("source: region width %d exceeds row width %d", rowBytes, paddedRowBytes)}
	}

	done := make(chan MapStatus, 1)
	if err := buf.MapAsync(0, need, func(s MapStatus) { done <- s }); err != nil {
		return nil, fmt.Errorf("map readback buffer: %w", err)
	}
	defer func() {
		if err := buf.Unmap(); err != nil {
			slogger().Warn("readback: unmap failed", "label", buf.Label(), "error", err)
		}
	}()

	select {
	case status := <-done:
		if status != MapStatusSuccess {
			if mapErr := buf.MapError(); mapErr != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrMappingFailed, status, mapErr)
			}
			return nil, fmt.Errorf("%w: %s", ErrMappingFailed, status)
		}
	case <-ctx.Done():
		return nil, fmt.Errorf("await readback mapping: %w", ctx.Err())
	}

	data, err := buf.MappedRange(0, need)
	if err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, int(width), int(height)))
	if err := CopyRegion(img.Pix, img.Stride, 0, data, int(paddedRowBytes), 0, rowBytes, int(height)); err != nil {
		return nil, err
	}
	slogger().Debug("readback: unpacked",
		"width", width, "height", height,
		"padded_row_bytes", paddedRowBytes, "row_bytes", rowBytes)
	return img, nil
}
