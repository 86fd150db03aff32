package readback

import "fmt"

// RegionError reports a copy region that does not fit its source or
// destination. No bytes are copied when it is returned.
type RegionError struct {
	Reason string
}

func (e *RegionError) Error() string {
	return "readback: invalid copy region: " + e.Reason
}

// CopyRegion copies rows of rowBytes bytes from src to dst.
//
// Row i is read from src[srcOffset+i*srcRowBytes:] and written to
// dst[dstOffset+i*dstRowBytes:]. The region is never clipped: if rowBytes
// exceeds either row width, or either buffer is too short to hold every
// requested row, CopyRegion returns a *RegionError before touching dst.
func CopyRegion(dst []byte, dstRowBytes, dstOffset int, src []byte, srcRowBytes, srcOffset int, rowBytes, rows int) error {
	if err := checkRegion(len(src), srcRowBytes, srcOffset, rowBytes, rows, "source"); err != nil {
		return err
	}
	if err := checkRegion(len(dst), dstRowBytes, dstOffset, rowBytes, rows, "destination"); err != nil {
		return err
	}

	// Tightly packed on both sides: one copy.
	if rowBytes == srcRowBytes && rowBytes == dstRowBytes {
		n := rowBytes * rows
		copy(dst[dstOffset:dstOffset+n], src[srcOffset:srcOffset+n])
		return nil
	}

	for row := 0; row < rows; row++ {
		s := srcOffset + row*srcRowBytes
		d := dstOffset + row*dstRowBytes
		copy(dst[d:d+rowBytes], src[s:s+rowBytes])
	}
	return nil
}

func checkRegion(length, rowWidth, offset, rowBytes, rows int, side string) error {
	switch {
	case rowBytes < 0 || rows < 0 || offset < 0 || rowWidth < 0:
		return &RegionError{Reason: fmt.Sprintf("%s: negative dimension (row width %d, offset %d, region %dx%d)",
			side, rowWidth, offset, rowBytes, rows)}
	case rowBytes > rowWidth:
		return &RegionError{Reason: fmt.Sprintf("%s: region width %d exceeds row width %d", side, rowBytes, rowWidth)}
	}
	if rows == 0 || rowBytes == 0 {
		return nil
	}
	need := offset + (rows-1)*rowWidth + rowBytes
	if need > length {
		return &RegionError{Reason: fmt.Sprintf("%s: need %d bytes, buffer holds %d", side, need, length)}
	}
	return nil
}
