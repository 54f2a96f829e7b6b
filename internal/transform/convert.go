package transform

import (
	"errors"
	"fmt"
	"image"

	"github.com/zsiec/mirage/media"
)

// ErrUnsupportedFormat is returned when a frame's pixel format has no
// decode or encode path.
var ErrUnsupportedFormat = errors.New("unsupported pixel format")

// BT.601 studio-swing coefficients, fixed point with 8 fractional bits.
// The same matrices are used in both directions so RGB->YUV->RGB drifts by
// at most a couple of code values.

func rgbToYUV(r, g, b uint8) (uint8, uint8, uint8) {
	ri, gi, bi := int(r), int(g), int(b)
	y := ((66*ri + 129*gi + 25*bi + 128) >> 8) + 16
	u := ((-38*ri - 74*gi + 112*bi + 128) >> 8) + 128
	v := ((112*ri - 94*gi - 18*bi + 128) >> 8) + 128
	return clamp8(y), clamp8(u), clamp8(v)
}

func yuvToRGB(y, u, v uint8) (uint8, uint8, uint8) {
	c := int(y) - 16
	d := int(u) - 128
	e := int(v) - 128
	r := (298*c + 409*e + 128) >> 8
	g := (298*c - 100*d - 208*e + 128) >> 8
	b := (298*c + 516*d + 128) >> 8
	return clamp8(r), clamp8(g), clamp8(b)
}

func clamp8(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// Decode expands a frame into an RGBA image.
func Decode(frame *media.Frame) (*image.RGBA, error) {
	if frame == nil {
		return nil, fmt.Errorf("transform: nil frame")
	}
	if !frame.Complete() {
		return nil, fmt.Errorf("transform: frame data %d bytes, format %s needs %d",
			len(frame.Data), frame.Format, frame.Format.FrameSize())
	}

	w, h := frame.Format.Width, frame.Format.Height
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	data := frame.Data

	switch frame.Format.PixelFormat {
	case media.PixelFormatRGB24:
		decodePacked(img, data, w, h, 3, 0, 1, 2)
	case media.PixelFormatBGR24:
		decodePacked(img, data, w, h, 3, 2, 1, 0)
	case media.PixelFormatRGB32:
		decodePacked(img, data, w, h, 4, 0, 1, 2)
	case media.PixelFormatYUY2:
		decode422(img, data, w, h, 0, 1, 2, 3)
	case media.PixelFormatUYVY:
		decode422(img, data, w, h, 1, 0, 3, 2)
	case media.PixelFormatNV12:
		decode420(img, data, w, h, true)
	case media.PixelFormatI420:
		decode420(img, data, w, h, false)
	default:
		return nil, fmt.Errorf("transform: decode %s: %w", frame.Format.PixelFormat, ErrUnsupportedFormat)
	}
	return img, nil
}

// Encode packs an RGBA image into a frame of the given format. The image
// geometry must match the format's.
func Encode(img *image.RGBA, format media.VideoFormat) (*media.Frame, error) {
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("transform: encode: %w", err)
	}
	b := img.Bounds()
	if b.Dx() != format.Width || b.Dy() != format.Height {
		return nil, fmt.Errorf("transform: encode: image %dx%d does not match format %s",
			b.Dx(), b.Dy(), format)
	}

	frame := media.NewFrame(format)
	if frame == nil {
		return nil, fmt.Errorf("transform: encode %s: %w", format.PixelFormat, ErrUnsupportedFormat)
	}

	w, h := format.Width, format.Height
	switch format.PixelFormat {
	case media.PixelFormatRGB24:
		encodePacked(frame.Data, img, w, h, 3, 0, 1, 2)
	case media.PixelFormatBGR24:
		encodePacked(frame.Data, img, w, h, 3, 2, 1, 0)
	case media.PixelFormatRGB32:
		encodePacked(frame.Data, img, w, h, 4, 0, 1, 2)
	case media.PixelFormatYUY2:
		encode422(frame.Data, img, w, h, 0, 1, 2, 3)
	case media.PixelFormatUYVY:
		encode422(frame.Data, img, w, h, 1, 0, 3, 2)
	case media.PixelFormatNV12:
		encode420(frame.Data, img, w, h, true)
	case media.PixelFormatI420:
		encode420(frame.Data, img, w, h, false)
	default:
		return nil, fmt.Errorf("transform: encode %s: %w", format.PixelFormat, ErrUnsupportedFormat)
	}
	return frame, nil
}

// decodePacked reads bpp-byte pixels whose R, G, B bytes sit at the given
// offsets within each pixel.
func decodePacked(img *image.RGBA, data []byte, w, h, bpp, offR, offG, offB int) {
	for y := 0; y < h; y++ {
		src := data[y*w*bpp:]
		dst := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			s := x * bpp
			d := x * 4
			dst[d+0] = src[s+offR]
			dst[d+1] = src[s+offG]
			dst[d+2] = src[s+offB]
			dst[d+3] = 0xFF
		}
	}
}

func encodePacked(data []byte, img *image.RGBA, w, h, bpp, offR, offG, offB int) {
	for y := 0; y < h; y++ {
		src := img.Pix[y*img.Stride:]
		dst := data[y*w*bpp:]
		for x := 0; x < w; x++ {
			s := x * 4
			d := x * bpp
			dst[d+offR] = src[s+0]
			dst[d+offG] = src[s+1]
			dst[d+offB] = src[s+2]
			if bpp == 4 {
				dst[d+3] = 0xFF
			}
		}
	}
}

// decode422 reads packed 4:2:2 macropixels. The offsets locate Y0, U, Y1, V
// within each 4-byte pair.
func decode422(img *image.RGBA, data []byte, w, h, offY0, offU, offY1, offV int) {
	pairs := (w + 1) / 2
	for y := 0; y < h; y++ {
		src := data[y*pairs*4:]
		dst := img.Pix[y*img.Stride:]
		for p := 0; p < pairs; p++ {
			s := p * 4
			u, v := src[s+offU], src[s+offV]

			r, g, b := yuvToRGB(src[s+offY0], u, v)
			d := p * 2 * 4
			dst[d+0], dst[d+1], dst[d+2], dst[d+3] = r, g, b, 0xFF

			if p*2+1 < w {
				r, g, b = yuvToRGB(src[s+offY1], u, v)
				d += 4
				dst[d+0], dst[d+1], dst[d+2], dst[d+3] = r, g, b, 0xFF
			}
		}
	}
}

func encode422(data []byte, img *image.RGBA, w, h, offY0, offU, offY1, offV int) {
	pairs := (w + 1) / 2
	for y := 0; y < h; y++ {
		src := img.Pix[y*img.Stride:]
		dst := data[y*pairs*4:]
		for p := 0; p < pairs; p++ {
			s := p * 2 * 4
			y0, u0, v0 := rgbToYUV(src[s+0], src[s+1], src[s+2])

			y1, u1, v1 := y0, u0, v0
			if p*2+1 < w {
				y1, u1, v1 = rgbToYUV(src[s+4], src[s+5], src[s+6])
			}

			d := p * 4
			dst[d+offY0] = y0
			dst[d+offY1] = y1
			dst[d+offU] = uint8((int(u0) + int(u1) + 1) / 2)
			dst[d+offV] = uint8((int(v0) + int(v1) + 1) / 2)
		}
	}
}

// decode420 reads a planar 4:2:0 layout: full-resolution Y plane followed by
// half-resolution chroma, interleaved UV for NV12 or separate U then V planes
// for I420.
func decode420(img *image.RGBA, data []byte, w, h int, interleaved bool) {
	cw, ch := (w+1)/2, (h+1)/2
	yPlane := data[:w*h]
	chroma := data[w*h:]
	var uPlane, vPlane []byte
	if !interleaved {
		uPlane = chroma[:cw*ch]
		vPlane = chroma[cw*ch : 2*cw*ch]
	}

	for y := 0; y < h; y++ {
		dst := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			ci := (y/2)*cw + x/2
			var u, v uint8
			if interleaved {
				u, v = chroma[ci*2], chroma[ci*2+1]
			} else {
				u, v = uPlane[ci], vPlane[ci]
			}
			r, g, b := yuvToRGB(yPlane[y*w+x], u, v)
			d := x * 4
			dst[d+0], dst[d+1], dst[d+2], dst[d+3] = r, g, b, 0xFF
		}
	}
}

func encode420(data []byte, img *image.RGBA, w, h int, interleaved bool) {
	cw, ch := (w+1)/2, (h+1)/2
	yPlane := data[:w*h]
	chroma := data[w*h:]
	var uPlane, vPlane []byte
	if !interleaved {
		uPlane = chroma[:cw*ch]
		vPlane = chroma[cw*ch : 2*cw*ch]
	}

	for cy := 0; cy < ch; cy++ {
		for cx := 0; cx < cw; cx++ {
			var uSum, vSum, n int
			for dy := 0; dy < 2; dy++ {
				for dx := 0; dx < 2; dx++ {
					x, y := cx*2+dx, cy*2+dy
					if x >= w || y >= h {
						continue
					}
					s := y*img.Stride + x*4
					yy, u, v := rgbToYUV(img.Pix[s+0], img.Pix[s+1], img.Pix[s+2])
					yPlane[y*w+x] = yy
					uSum += int(u)
					vSum += int(v)
					n++
				}
			}
			u := uint8((uSum + n/2) / n)
			v := uint8((vSum + n/2) / n)
			ci := cy*cw + cx
			if interleaved {
				chroma[ci*2] = u
				chroma[ci*2+1] = v
			} else {
				uPlane[ci] = u
				vPlane[ci] = v
			}
		}
	}
}
