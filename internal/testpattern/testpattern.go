// Package testpattern provides the picture a virtual camera shows when no
// producer is broadcasting: deterministic color bars generated at the device
// geometry, or an operator-supplied image file.
package testpattern

import (
	"fmt"
	"image"
	"image/draw"
	"os"

	_ "image/png" // register PNG for image.Decode

	_ "golang.org/x/image/bmp" // register BMP for image.Decode
)

// bars is the top-section palette: full-intensity bars in the classic
// white, yellow, cyan, green, magenta, red, blue order.
var bars = [7][3]uint8{
	{255, 255, 255},
	{255, 255, 0},
	{0, 255, 255},
	{0, 255, 0},
	{255, 0, 255},
	{255, 0, 0},
	{0, 0, 255},
}

// Generate renders color bars at the given geometry: seven vertical bars over
// the top two thirds and a grayscale ramp along the bottom third. The output
// depends only on the geometry.
func Generate(width, height int) *image.RGBA {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	barsBottom := height * 2 / 3
	if barsBottom < 1 {
		barsBottom = height
	}

	for y := 0; y < height; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < width; x++ {
			var r, g, b uint8
			if y < barsBottom {
				c := bars[x*len(bars)/width]
				r, g, b = c[0], c[1], c[2]
			} else {
				gray := uint8(0)
				if width > 1 {
					gray = uint8(x * 255 / (width - 1))
				}
				r, g, b = gray, gray, gray
			}
			i := x * 4
			row[i+0] = r
			row[i+1] = g
			row[i+2] = b
			row[i+3] = 0xFF
		}
	}
	return img
}

// Load reads a PNG or BMP image from disk and returns it as RGBA.
func Load(path string) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("testpattern: %w", err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("testpattern: decode %s: %w", path, err)
	}
	return toRGBA(src), nil
}

// Image resolves a device's test picture: the file at path when set,
// otherwise bars generated at the given geometry.
func Image(path string, width, height int) (*image.RGBA, error) {
	if path == "" {
		return Generate(width, height), nil
	}
	return Load(path)
}

func toRGBA(src image.Image) *image.RGBA {
	if rgba, ok := src.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}
