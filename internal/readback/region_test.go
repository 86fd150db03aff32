package readback

import (
	"bytes"
	"errors"
	"testing"
)

func TestCopyRegionRoundTrip(t *testing.T) {
	const rowBytes, rows = 16, 5
	src := make([]byte, rowBytes*rows)
	for i := range src {
		src[i] = byte(i*7 + 3)
	}
	const offset = 8
	dst := make([]byte, offset+len(src))

	if err := CopyRegion(dst, rowBytes, offset, src, rowBytes, 0, rowBytes, rows); err != nil {
		t.Fatalf("CopyRegion: %v", err)
	}
	if !bytes.Equal(dst[offset:], src) {
		t.Error("destination does not reproduce source bytes")
	}
	if !bytes.Equal(dst[:offset], make([]byte, offset)) {
		t.Error("bytes before destination offset were modified")
	}
}

func TestCopyRegionStripsPadding(t *testing.T) {
	const padded, logical, rows = 12, 8, 3
	src := make([]byte, padded*rows)
	for r := 0; r < rows; r++ {
		for c := 0; c < padded; c++ {
			if c < logical {
				src[r*padded+c] = byte(r + 1)
			} else {
				src[r*padded+c] = 0xEE
			}
		}
	}
	dst := make([]byte, logical*rows)
	if err := CopyRegion(dst, logical, 0, src, padded, 0, logical, rows); err != nil {
		t.Fatalf("CopyRegion: %v", err)
	}
	for i, b := range dst {
		if want := byte(i/logical + 1); b != want {
			t.Fatalf("dst[%d] = %#x, want %#x", i, b, want)
		}
	}
}

func TestCopyRegionRejects(t *testing.T) {
	src := make([]byte, 64)
	dst := make([]byte, 64)

	tests := []struct {
		name                              string
		dst                               []byte
		dstRow, dstOff                    int
		src                               []byte
		srcRow, srcOff, rowBytes, rowsCnt int
	}{
		{"width exceeds source row", dst, 16, 0, src, 8, 0, 12, 2},
		{"width exceeds destination row", dst, 8, 0, src, 16, 0, 12, 2},
		{"source too short", dst, 16, 0, src[:40], 16, 0, 16, 3},
		{"destination too short", dst[:31], 16, 0, src, 16, 0, 16, 2},
		{"source offset overflows", dst, 16, 0, src, 16, 60, 8, 1},
		{"destination offset overflows", dst, 16, 57, src, 16, 0, 8, 1},
		{"negative rows", dst, 16, 0, src, 16, 0, 8, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := append([]byte(nil), tt.dst...)
			err := CopyRegion(tt.dst, tt.dstRow, tt.dstOff, tt.src, tt.srcRow, tt.srcOff, tt.rowBytes, tt.rowsCnt)
			var re *RegionError
			if !errors.As(err, &re) {
				t.Fatalf("err = %v, want *RegionError", err)
			}
			if !bytes.Equal(before, tt.dst) {
				t.Error("destination modified by rejected copy")
			}
		})
	}
}

func TestCopyRegionLastRowNeedsNoPadding(t *testing.T) {
	// The final row only needs rowBytes, not a full padded stride.
	src := make([]byte, 16+8)
	dst := make([]byte, 16)
	if err := CopyRegion(dst, 8, 0, src, 16, 0, 8, 2); err != nil {
		t.Fatalf("CopyRegion: %v", err)
	}
}

func TestCopyRegionEmpty(t *testing.T) {
	if err := CopyRegion(nil, 0, 0, nil, 0, 0, 0, 0); err != nil {
		t.Fatalf("empty region: %v", err)
	}
}
