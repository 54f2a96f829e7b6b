// Package transform implements the frame adaptation pipeline a stream applies
// to every ingested picture: mirror, scale with an aspect-ratio policy, and
// pixel-format conversion. All stages are pure functions over frame data so
// the same input always produces the same output.
package transform

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"golang.org/x/image/draw"

	"github.com/zsiec/mirage/media"
)

// Scaling selects the interpolator used when resizing.
type Scaling int

const (
	// ScalingFast is nearest-neighbor resampling.
	ScalingFast Scaling = iota
	// ScalingLinear is bilinear resampling.
	ScalingLinear
)

func (s Scaling) String() string {
	switch s {
	case ScalingFast:
		return "fast"
	case ScalingLinear:
		return "linear"
	default:
		return fmt.Sprintf("Scaling(%d)", int(s))
	}
}

// ParseScaling resolves "fast" or "linear".
func ParseScaling(s string) (Scaling, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fast":
		return ScalingFast, nil
	case "linear":
		return ScalingLinear, nil
	}
	return 0, fmt.Errorf("transform: unknown scaling mode %q", s)
}

// AspectRatio selects how a source is fitted when its aspect differs from
// the output's.
type AspectRatio int

const (
	// AspectRatioIgnore stretches the source to fill the output.
	AspectRatioIgnore AspectRatio = iota
	// AspectRatioKeep letterboxes the source inside a black canvas.
	AspectRatioKeep
	// AspectRatioExpanding scales to fill and center-crops the overflow.
	AspectRatioExpanding
)

func (a AspectRatio) String() string {
	switch a {
	case AspectRatioIgnore:
		return "ignore"
	case AspectRatioKeep:
		return "keep"
	case AspectRatioExpanding:
		return "expanding"
	default:
		return fmt.Sprintf("AspectRatio(%d)", int(a))
	}
}

// ParseAspectRatio resolves "ignore", "keep", or "expanding".
func ParseAspectRatio(s string) (AspectRatio, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ignore":
		return AspectRatioIgnore, nil
	case "keep":
		return AspectRatioKeep, nil
	case "expanding":
		return AspectRatioExpanding, nil
	}
	return 0, fmt.Errorf("transform: unknown aspect ratio mode %q", s)
}

// Options describes one full adaptation: the mirror axes, the resampling and
// fitting policies, and the output format the result must land in.
type Options struct {
	HorizontalMirror bool
	VerticalMirror   bool
	Scaling          Scaling
	AspectRatio      AspectRatio
	Output           media.VideoFormat
}

// Apply runs the pipeline: decode to RGBA, mirror, scale into the output
// geometry, encode into the output pixel format. The source frame is never
// modified.
func Apply(src *media.Frame, opts Options) (*media.Frame, error) {
	if src == nil {
		return nil, fmt.Errorf("transform: nil source frame")
	}
	if err := opts.Output.Validate(); err != nil {
		return nil, fmt.Errorf("transform: bad output format: %w", err)
	}

	img, err := Decode(src)
	if err != nil {
		return nil, err
	}
	img = MirrorRGBA(img, opts.HorizontalMirror, opts.VerticalMirror)
	img = ScaleRGBA(img, opts.Output.Width, opts.Output.Height, opts.Scaling, opts.AspectRatio)
	return Encode(img, opts.Output)
}

// MirrorRGBA flips the image across the requested axes. With both axes false
// the input is returned unchanged.
func MirrorRGBA(src *image.RGBA, horizontal, vertical bool) *image.RGBA {
	if !horizontal && !vertical {
		return src
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		sy := y
		if vertical {
			sy = h - 1 - y
		}
		srcRow := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+sy):]
		dstRow := dst.Pix[y*dst.Stride:]
		if !horizontal {
			copy(dstRow[:w*4], srcRow[:w*4])
			continue
		}
		for x := 0; x < w; x++ {
			sx := (w - 1 - x) * 4
			copy(dstRow[x*4:x*4+4], srcRow[sx:sx+4])
		}
	}
	return dst
}

// ScaleRGBA resizes the image to width x height under the given policies.
// An image already at the target geometry is returned unchanged.
func ScaleRGBA(src *image.RGBA, width, height int, scaling Scaling, aspect AspectRatio) *image.RGBA {
	b := src.Bounds()
	sw, sh := b.Dx(), b.Dy()
	if sw == width && sh == height {
		return src
	}

	var scaler draw.Scaler = draw.NearestNeighbor
	if scaling == ScalingLinear {
		scaler = draw.BiLinear
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	switch aspect {
	case AspectRatioKeep:
		draw.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
		fit := fitRect(sw, sh, width, height)
		scaler.Scale(dst, fit, src, b, draw.Src, nil)
	case AspectRatioExpanding:
		crop := cropRect(sw, sh, width, height).Add(b.Min)
		scaler.Scale(dst, dst.Bounds(), src, crop, draw.Src, nil)
	default:
		scaler.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	}
	return dst
}

// fitRect returns the centered destination rectangle that preserves the
// source aspect inside width x height.
func fitRect(sw, sh, width, height int) image.Rectangle {
	fw, fh := width, height
	if sw*height > width*sh {
		// source wider: pin width, shrink height
		fh = (sh*width + sw/2) / sw
		if fh < 1 {
			fh = 1
		}
	} else {
		fw = (sw*height + sh/2) / sh
		if fw < 1 {
			fw = 1
		}
	}
	x0 := (width - fw) / 2
	y0 := (height - fh) / 2
	return image.Rect(x0, y0, x0+fw, y0+fh)
}

// cropRect returns the centered source rectangle matching the output aspect,
// for scale-to-fill.
func cropRect(sw, sh, width, height int) image.Rectangle {
	cw, ch := sw, sh
	if sw*height > width*sh {
		// source wider: crop the sides
		cw = (width*sh + height/2) / height
		if cw < 1 {
			cw = 1
		}
	} else {
		ch = (height*sw + width/2) / width
		if ch < 1 {
			ch = 1
		}
	}
	x0 := (sw - cw) / 2
	y0 := (sh - ch) / 2
	return image.Rect(x0, y0, x0+cw, y0+ch)
}
