package readback

import (
	"errors"
	"math"
	"testing"
)

func TestSmallestMultipleContaining(t *testing.T) {
	tests := []struct {
		value, base, want uint32
	}{
		{63, 64, 64},
		{64, 64, 64},
		{65, 64, 128},
		{0, 256, 0},
		{1, 256, 256},
		{1024, 256, 1024},
		{3628, 256, 3840},
		{7, 1, 7},
	}
	for _, tt := range tests {
		if got := SmallestMultipleContaining(tt.value, tt.base); got != tt.want {
			t.Errorf("SmallestMultipleContaining(%d, %d) = %d, want %d", tt.value, tt.base, got, tt.want)
		}
	}
}

func TestSmallestMultipleContainingProperty(t *testing.T) {
	for _, base := range []uint32{1, 3, 4, 64, 256} {
		for value := uint32(0); value < 2048; value++ {
			m := SmallestMultipleContaining(value, base)
			if m%base != 0 {
				t.Fatalf("(%d, %d) = %d, not a multiple", value, base, m)
			}
			if m < value {
				t.Fatalf("(%d, %d) = %d, smaller than value", value, base, m)
			}
			if m >= base && m-base >= value {
				t.Fatalf("(%d, %d) = %d, not the smallest multiple", value, base, m)
			}
		}
	}
}

func TestSmallestMultipleContainingZeroBasePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for zero base")
		}
	}()
	SmallestMultipleContaining(10, 0)
}

func TestPaddedRowBytes(t *testing.T) {
	tests := []struct {
		width, want uint32
	}{
		{256, 1024},
		{907, 3840},
		{1, 256},
		{64, 256},
		{65, 512},
	}
	for _, tt := range tests {
		got, err := PaddedRowBytes(tt.width, CopyPitchAlignment)
		if err != nil || got != tt.want {
			t.Errorf("PaddedRowBytes(%d) = %d, %v; want %d", tt.width, got, err, tt.want)
		}
	}
	if got, err := BufferSize(907, 64, CopyPitchAlignment); err != nil || got != 3840*64 {
		t.Errorf("BufferSize(907, 64) = %d, %v; want %d", got, err, 3840*64)
	}
}

func TestSmallestMultipleContainingOverflowPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic when the multiple overflows uint32")
		}
	}()
	SmallestMultipleContaining(math.MaxUint32, 256)
}

func TestSmallestMultipleContainingLargestFit(t *testing.T) {
	if got := SmallestMultipleContaining(math.MaxUint32-255, 256); got != math.MaxUint32-255 {
		t.Errorf("got %d, want %d", got, uint32(math.MaxUint32-255))
	}
}

func TestPaddedRowBytesOverflow(t *testing.T) {
	for _, width := range []uint32{1<<30 + 1, math.MaxUint32} {
		if _, err := PaddedRowBytes(width, CopyPitchAlignment); !errors.Is(err, ErrSizeOverflow) {
			t.Errorf("PaddedRowBytes(%d) err = %v, want ErrSizeOverflow", width, err)
		}
		if _, err := BufferSize(width, 4, CopyPitchAlignment); !errors.Is(err, ErrSizeOverflow) {
			t.Errorf("BufferSize(%d) err = %v, want ErrSizeOverflow", width, err)
		}
	}
	if _, err := PaddedRowBytes(16, 0); err == nil {
		t.Error("zero alignment accepted")
	}
}
