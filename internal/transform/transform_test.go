package transform

import (
	"bytes"
	"image"
	"testing"

	"github.com/zsiec/mirage/media"
)

func pixelAt(img *image.RGBA, x, y int) [4]uint8 {
	i := img.PixOffset(x, y)
	return [4]uint8{img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3]}
}

func setPixel(img *image.RGBA, x, y int, c [4]uint8) {
	i := img.PixOffset(x, y)
	copy(img.Pix[i:i+4], c[:])
}

func TestMirrorRGBA(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	a := [4]uint8{1, 0, 0, 255}
	b := [4]uint8{2, 0, 0, 255}
	c := [4]uint8{3, 0, 0, 255}
	d := [4]uint8{4, 0, 0, 255}
	setPixel(img, 0, 0, a)
	setPixel(img, 1, 0, b)
	setPixel(img, 0, 1, c)
	setPixel(img, 1, 1, d)

	horizontal := MirrorRGBA(img, true, false)
	if pixelAt(horizontal, 0, 0) != b || pixelAt(horizontal, 1, 0) != a {
		t.Error("horizontal mirror did not swap columns")
	}

	vertical := MirrorRGBA(img, false, true)
	if pixelAt(vertical, 0, 0) != c || pixelAt(vertical, 0, 1) != a {
		t.Error("vertical mirror did not swap rows")
	}

	both := MirrorRGBA(img, true, true)
	if pixelAt(both, 0, 0) != d || pixelAt(both, 1, 1) != a {
		t.Error("double mirror did not rotate 180 degrees")
	}

	// mirroring twice along the same axis restores the original
	restored := MirrorRGBA(MirrorRGBA(img, true, false), true, false)
	if !bytes.Equal(restored.Pix, img.Pix) {
		t.Error("mirror is not its own inverse")
	}

	if MirrorRGBA(img, false, false) != img {
		t.Error("no-op mirror should return the input image")
	}
}

func whiteImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xFF
	}
	return img
}

func TestScaleRGBAIgnore(t *testing.T) {
	src := whiteImage(4, 2)
	dst := ScaleRGBA(src, 8, 8, ScalingFast, AspectRatioIgnore)
	if got := dst.Bounds(); got.Dx() != 8 || got.Dy() != 8 {
		t.Fatalf("geometry = %dx%d, want 8x8", got.Dx(), got.Dy())
	}
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if pixelAt(dst, x, y)[0] != 0xFF {
				t.Fatalf("pixel (%d,%d) not stretched source", x, y)
			}
		}
	}
}

func TestScaleRGBAKeep(t *testing.T) {
	// 2:1 source into a square output letterboxes top and bottom.
	src := whiteImage(4, 2)
	dst := ScaleRGBA(src, 8, 8, ScalingFast, AspectRatioKeep)

	if got := pixelAt(dst, 0, 0); got[0] != 0 || got[1] != 0 || got[2] != 0 {
		t.Errorf("top-left should be letterbox black, got %v", got)
	}
	if got := pixelAt(dst, 4, 4); got[0] != 0xFF {
		t.Errorf("center should be source white, got %v", got)
	}
	if got := pixelAt(dst, 0, 7); got[0] != 0 {
		t.Errorf("bottom-left should be letterbox black, got %v", got)
	}
}

func TestScaleRGBAExpanding(t *testing.T) {
	// 2:1 source into a square output crops the sides; no letterbox remains.
	src := whiteImage(4, 2)
	dst := ScaleRGBA(src, 8, 8, ScalingFast, AspectRatioExpanding)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if pixelAt(dst, x, y)[0] != 0xFF {
				t.Fatalf("pixel (%d,%d) should be filled by cropped source", x, y)
			}
		}
	}
}

func TestScaleRGBASameGeometry(t *testing.T) {
	src := whiteImage(4, 4)
	if ScaleRGBA(src, 4, 4, ScalingLinear, AspectRatioKeep) != src {
		t.Error("identity scale should return the input image")
	}
}

func TestApplyDeterministic(t *testing.T) {
	src, err := Encode(blockImage(16, 12), media.VideoFormat{
		PixelFormat: media.PixelFormatRGB24, Width: 16, Height: 12,
	})
	if err != nil {
		t.Fatal(err)
	}
	opts := Options{
		HorizontalMirror: true,
		Scaling:          ScalingLinear,
		AspectRatio:      AspectRatioKeep,
		Output:           media.VideoFormat{PixelFormat: media.PixelFormatYUY2, Width: 32, Height: 32},
	}

	first, err := Apply(src, opts)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Apply(src, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first.Data, second.Data) {
		t.Error("Apply is not deterministic")
	}
	if got, want := len(first.Data), opts.Output.FrameSize(); got != want {
		t.Errorf("output size %d, want %d", got, want)
	}
	if !first.Format.Equal(opts.Output) {
		t.Errorf("output format %s, want %s", first.Format, opts.Output)
	}
}

func TestApplyErrors(t *testing.T) {
	good := media.VideoFormat{PixelFormat: media.PixelFormatRGB24, Width: 4, Height: 4}

	if _, err := Apply(nil, Options{Output: good}); err == nil {
		t.Error("Apply(nil) should fail")
	}

	src := media.NewFrame(good)
	if _, err := Apply(src, Options{Output: media.VideoFormat{}}); err == nil {
		t.Error("Apply with invalid output format should fail")
	}

	short := &media.Frame{Format: good, Data: make([]byte, 3)}
	if _, err := Apply(short, Options{Output: good}); err == nil {
		t.Error("Apply with truncated source should fail")
	}
}

func TestParseScaling(t *testing.T) {
	tests := []struct {
		in      string
		want    Scaling
		wantErr bool
	}{
		{"fast", ScalingFast, false},
		{"Linear", ScalingLinear, false},
		{" FAST ", ScalingFast, false},
		{"cubic", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseScaling(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseScaling(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseScaling(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseAspectRatio(t *testing.T) {
	tests := []struct {
		in      string
		want    AspectRatio
		wantErr bool
	}{
		{"ignore", AspectRatioIgnore, false},
		{"keep", AspectRatioKeep, false},
		{"Expanding", AspectRatioExpanding, false},
		{"fill", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseAspectRatio(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseAspectRatio(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseAspectRatio(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestScalingAspectStrings(t *testing.T) {
	if got := ScalingFast.String(); got != "fast" {
		t.Errorf("ScalingFast.String() = %q", got)
	}
	if got := AspectRatioExpanding.String(); got != "expanding" {
		t.Errorf("AspectRatioExpanding.String() = %q", got)
	}
}
