package testpattern

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/bmp"
)

func TestGenerateDeterministic(t *testing.T) {
	a := Generate(640, 480)
	b := Generate(640, 480)
	if !bytes.Equal(a.Pix, b.Pix) {
		t.Fatal("Generate is not deterministic")
	}
	if got := a.Bounds(); got.Dx() != 640 || got.Dy() != 480 {
		t.Fatalf("geometry = %dx%d, want 640x480", got.Dx(), got.Dy())
	}
}

func TestGenerateBars(t *testing.T) {
	img := Generate(700, 300)

	// one probe inside each of the seven bars, at the vertical middle
	for i, want := range bars {
		x := i*100 + 50
		o := img.PixOffset(x, 100)
		got := [3]uint8{img.Pix[o], img.Pix[o+1], img.Pix[o+2]}
		if got != want {
			t.Errorf("bar %d at x=%d: got %v, want %v", i, x, got, want)
		}
	}

	// bottom strip is a grayscale ramp: dark left, bright right
	left := img.PixOffset(0, 280)
	right := img.PixOffset(699, 280)
	if img.Pix[left] != 0 {
		t.Errorf("ramp left = %d, want 0", img.Pix[left])
	}
	if img.Pix[right] != 255 {
		t.Errorf("ramp right = %d, want 255", img.Pix[right])
	}
	if img.Pix[left+1] != img.Pix[left] || img.Pix[left+2] != img.Pix[left] {
		t.Error("ramp is not gray")
	}
}

func TestGenerateTinyGeometry(t *testing.T) {
	img := Generate(0, 0)
	if got := img.Bounds(); got.Dx() != 1 || got.Dy() != 1 {
		t.Fatalf("geometry = %dx%d, want 1x1", got.Dx(), got.Dy())
	}
}

func TestLoadPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pattern.png")
	src := Generate(32, 24)

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, src); err != nil {
		t.Fatal(err)
	}
	f.Close()

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(got.Pix, src.Pix) {
		t.Error("PNG round trip altered pixels")
	}
}

func TestLoadBMP(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pattern.bmp")
	src := Generate(32, 24)

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := bmp.Encode(f, src); err != nil {
		t.Fatal(err)
	}
	f.Close()

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Bounds() != src.Bounds() {
		t.Errorf("bounds = %v, want %v", got.Bounds(), src.Bounds())
	}
	// BMP drops alpha but carries RGB exactly
	for i := 0; i < len(src.Pix); i += 4 {
		if got.Pix[i] != src.Pix[i] || got.Pix[i+1] != src.Pix[i+1] || got.Pix[i+2] != src.Pix[i+2] {
			t.Fatalf("pixel %d: got %v, want %v", i/4, got.Pix[i:i+3], src.Pix[i:i+3])
		}
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.png")); err == nil {
		t.Fatal("Load of a missing file should fail")
	}
}

func TestImageFallback(t *testing.T) {
	img, err := Image("", 64, 48)
	if err != nil {
		t.Fatalf("Image: %v", err)
	}
	if got := img.Bounds(); got.Dx() != 64 || got.Dy() != 48 {
		t.Fatalf("geometry = %dx%d, want 64x48", got.Dx(), got.Dy())
	}
}
