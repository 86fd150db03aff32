package output

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/gogpu/offscreen/shader"
)

var _ shader.Sink = (*FileSink)(nil)

func testImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 7, 5))
	for y := 0; y < 5; y++ {
		for x := 0; x < 7; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 50), B: 200, A: 255})
		}
	}
	return img
}

func sameImage(t *testing.T, got, want image.Image) {
	t.Helper()
	if got.Bounds() != want.Bounds() {
		t.Fatalf("bounds = %v, want %v", got.Bounds(), want.Bounds())
	}
	b := want.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r1, g1, b1, a1 := got.At(x, y).RGBA()
			r2, g2, b2, a2 := want.At(x, y).RGBA()
			if r1 != r2 || g1 != g2 || b1 != b2 || a1 != a2 {
				t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, got.At(x, y), want.At(x, y))
			}
		}
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"output.png", FormatPNG},
		{"dir/OUT.PNG", FormatPNG},
		{"frame.bmp", FormatBMP},
		{"frame.tif", FormatTIFF},
		{"frame.tiff", FormatTIFF},
	}
	for _, tt := range tests {
		got, err := FormatFromPath(tt.path)
		if err != nil {
			t.Errorf("FormatFromPath(%q): %v", tt.path, err)
			continue
		}
		if got != tt.want {
			t.Errorf("FormatFromPath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}

	for _, bad := range []string{"frame.jpg", "frame", "frame.png.gz"} {
		if _, err := FormatFromPath(bad); !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("FormatFromPath(%q) err = %v, want ErrUnsupportedFormat", bad, err)
		}
	}
}

func TestWriteImage(t *testing.T) {
	decoders := map[string]func(*os.File) (image.Image, error){
		"out.png":  func(f *os.File) (image.Image, error) { return png.Decode(f) },
		"out.bmp":  func(f *os.File) (image.Image, error) { return bmp.Decode(f) },
		"out.tiff": func(f *os.File) (image.Image, error) { return tiff.Decode(f) },
	}
	want := testImage()
	for name, decode := range decoders {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			if err := WriteImage(path, want); err != nil {
				t.Fatalf("WriteImage: %v", err)
			}
			f, err := os.Open(path)
			if err != nil {
				t.Fatal(err)
			}
			defer f.Close()
			got, err := decode(f)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			sameImage(t, got, want)
		})
	}
}

func TestWriteImageUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.webp")
	if err := WriteImage(path, testImage()); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file created for unsupported format")
	}
}

func TestEncodeUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, testImage(), Format(9)); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestFileSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "artifacts")
	sink, err := NewFileSink(dir)
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}

	if err := sink.WriteArtifact("debug.txt", []byte("first")); err != nil {
		t.Fatalf("WriteArtifact: %v", err)
	}
	if err := sink.WriteArtifact("debug.txt", []byte("second")); err != nil {
		t.Fatalf("WriteArtifact overwrite: %v", err)
	}
	data, err := os.ReadFile(sink.Path("debug.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "second" {
		t.Errorf("content = %q, want %q", data, "second")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("dir holds %v, want only debug.txt", names)
	}
}

func TestFileSinkRejectsNames(t *testing.T) {
	sink, err := NewFileSink(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"", ".", "..", "../escape.txt", `sub\file`, "a/b"} {
		if err := sink.WriteArtifact(name, []byte("x")); !errors.Is(err, ErrInvalidArtifactName) {
			t.Errorf("WriteArtifact(%q) err = %v, want ErrInvalidArtifactName", name, err)
		}
	}
}

func TestFileSinkWithCompile(t *testing.T) {
	sink, err := NewFileSink(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	const src = `@vertex
fn vert_main(@builtin(vertex_index) idx: u32) -> @builtin(position) vec4<f32> {
    return vec4<f32>(f32(idx), 0.0, 0.0, 1.0);
}
`
	c, err := shader.Compile(src, shader.WithTarget(shader.TargetSPIRV), shader.WithSink(sink))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(c.ArtifactErrors) != 0 {
		t.Fatalf("artifact errors: %v", c.ArtifactErrors)
	}
	spv, err := os.ReadFile(sink.Path("debug.spv"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(spv, c.Bytes()) {
		t.Error("debug.spv differs from the compiled words")
	}
	if _, err := os.Stat(sink.Path("debug.txt")); err != nil {
		t.Errorf("debug.txt: %v", err)
	}
}
