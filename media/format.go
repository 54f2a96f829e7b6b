// Package media defines the core pixel-format, frame-rate, and frame types
// that flow through the mirage engine, from ingestion through the sample queue.
package media

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// PixelFormat identifies a raw pixel layout by its little-endian FourCC code,
// following the V4L2 convention.
type PixelFormat uint32

// Supported pixel formats.
const (
	PixelFormatRGB24 PixelFormat = 'R' | 'G'<<8 | 'B'<<16 | '3'<<24 // packed RGB, 3 bytes/pixel
	PixelFormatBGR24 PixelFormat = 'B' | 'G'<<8 | 'R'<<16 | '3'<<24 // packed BGR, 3 bytes/pixel
	PixelFormatRGB32 PixelFormat = 'R' | 'G'<<8 | 'B'<<16 | '4'<<24 // packed RGBX, 4 bytes/pixel
	PixelFormatYUY2  PixelFormat = 'Y' | 'U'<<8 | 'Y'<<16 | 'V'<<24 // packed 4:2:2, Y0 U Y1 V
	PixelFormatUYVY  PixelFormat = 'U' | 'Y'<<8 | 'V'<<16 | 'Y'<<24 // packed 4:2:2, U Y0 V Y1
	PixelFormatNV12  PixelFormat = 'N' | 'V'<<8 | '1'<<16 | '2'<<24 // planar 4:2:0, Y plane + interleaved UV
	PixelFormatI420  PixelFormat = 'Y' | 'U'<<8 | '1'<<16 | '2'<<24 // planar 4:2:0, Y + U + V planes
)

func (p PixelFormat) String() string {
	switch p {
	case PixelFormatRGB24:
		return "RGB24"
	case PixelFormatBGR24:
		return "BGR24"
	case PixelFormatRGB32:
		return "RGB32"
	case PixelFormatYUY2:
		return "YUY2"
	case PixelFormatUYVY:
		return "UYVY"
	case PixelFormatNV12:
		return "NV12"
	case PixelFormatI420:
		return "I420"
	default:
		return fmt.Sprintf("PixelFormat(%#08x)", uint32(p))
	}
}

// FourCC returns the four-character tag of the format, e.g. "YUYV".
func (p PixelFormat) FourCC() string {
	return string([]byte{byte(p), byte(p >> 8), byte(p >> 16), byte(p >> 24)})
}

// MarshalJSON encodes the format as its name, e.g. "YUY2".
func (p PixelFormat) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON accepts any name ParsePixelFormat does.
func (p *PixelFormat) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParsePixelFormat(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Valid reports whether p is one of the supported pixel formats.
func (p PixelFormat) Valid() bool {
	switch p {
	case PixelFormatRGB24, PixelFormatBGR24, PixelFormatRGB32,
		PixelFormatYUY2, PixelFormatUYVY, PixelFormatNV12, PixelFormatI420:
		return true
	}
	return false
}

// Planar reports whether the format stores chroma in separate planes.
func (p PixelFormat) Planar() bool {
	return p == PixelFormatNV12 || p == PixelFormatI420
}

// FrameSize returns the byte size of one frame at the given geometry, or 0
// for an unsupported format or non-positive dimensions. Planar 4:2:0 sizes
// round odd dimensions up, matching how the planes are laid out.
func (p PixelFormat) FrameSize(width, height int) int {
	if width <= 0 || height <= 0 {
		return 0
	}
	switch p {
	case PixelFormatRGB24, PixelFormatBGR24:
		return width * height * 3
	case PixelFormatRGB32:
		return width * height * 4
	case PixelFormatYUY2, PixelFormatUYVY:
		return ((width + 1) / 2) * 2 * height * 2
	case PixelFormatNV12, PixelFormatI420:
		return width*height + 2*((width+1)/2)*((height+1)/2)
	default:
		return 0
	}
}

// ParsePixelFormat resolves a format name such as "YUY2" or "rgb24".
func ParsePixelFormat(s string) (PixelFormat, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "RGB24":
		return PixelFormatRGB24, nil
	case "BGR24":
		return PixelFormatBGR24, nil
	case "RGB32":
		return PixelFormatRGB32, nil
	case "YUY2", "YUYV":
		return PixelFormatYUY2, nil
	case "UYVY":
		return PixelFormatUYVY, nil
	case "NV12":
		return PixelFormatNV12, nil
	case "I420", "YU12":
		return PixelFormatI420, nil
	}
	return 0, fmt.Errorf("media: unknown pixel format %q", s)
}

// Fraction is a frame rate expressed as frames per Den seconds, e.g. 30/1
// or the NTSC 30000/1001.
type Fraction struct {
	Num uint32 `json:"num"`
	Den uint32 `json:"den"`
}

// Valid reports whether the fraction describes a positive rate.
func (f Fraction) Valid() bool {
	return f.Num > 0 && f.Den > 0
}

// FPS returns the rate in frames per second, or 0 if invalid.
func (f Fraction) FPS() float64 {
	if !f.Valid() {
		return 0
	}
	return float64(f.Num) / float64(f.Den)
}

// Interval returns the duration of one frame, or 0 if invalid.
func (f Fraction) Interval() time.Duration {
	if !f.Valid() {
		return 0
	}
	return time.Duration(float64(f.Den) / float64(f.Num) * float64(time.Second))
}

func (f Fraction) String() string {
	if f.Den == 1 {
		return strconv.FormatUint(uint64(f.Num), 10)
	}
	return fmt.Sprintf("%d/%d", f.Num, f.Den)
}

// ParseFraction parses "30", "30/1", or "30000/1001".
func ParseFraction(s string) (Fraction, error) {
	s = strings.TrimSpace(s)
	num, den := s, "1"
	if i := strings.IndexByte(s, '/'); i >= 0 {
		num, den = s[:i], s[i+1:]
	}
	n, err := strconv.ParseUint(num, 10, 32)
	if err != nil {
		return Fraction{}, fmt.Errorf("media: bad frame rate %q: %w", s, err)
	}
	d, err := strconv.ParseUint(den, 10, 32)
	if err != nil {
		return Fraction{}, fmt.Errorf("media: bad frame rate %q: %w", s, err)
	}
	f := Fraction{Num: uint32(n), Den: uint32(d)}
	if !f.Valid() {
		return Fraction{}, fmt.Errorf("media: bad frame rate %q", s)
	}
	return f, nil
}

// VideoFormat describes one stream format a virtual camera offers: pixel
// layout, geometry, and the frame rates it supports in preference order.
type VideoFormat struct {
	PixelFormat      PixelFormat `json:"pixelFormat"`
	Width            int         `json:"width"`
	Height           int         `json:"height"`
	FrameRates       []Fraction  `json:"frameRates"`
	MinimumFrameRate Fraction    `json:"minimumFrameRate"`
}

// FrameSize returns the byte size of one frame in this format.
func (f VideoFormat) FrameSize() int {
	return f.PixelFormat.FrameSize(f.Width, f.Height)
}

// Equal reports whether two formats describe the same pixel layout and
// geometry. Frame-rate lists are not compared; they are negotiation
// metadata, not part of the buffer layout.
func (f VideoFormat) Equal(other VideoFormat) bool {
	return f.PixelFormat == other.PixelFormat &&
		f.Width == other.Width &&
		f.Height == other.Height
}

// Validate reports the first problem with the format, or nil.
func (f VideoFormat) Validate() error {
	if !f.PixelFormat.Valid() {
		return fmt.Errorf("media: unsupported pixel format %s", f.PixelFormat)
	}
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("media: bad geometry %dx%d", f.Width, f.Height)
	}
	for _, r := range f.FrameRates {
		if !r.Valid() {
			return fmt.Errorf("media: bad frame rate %s", r)
		}
	}
	return nil
}

func (f VideoFormat) String() string {
	return fmt.Sprintf("%s %dx%d", f.PixelFormat, f.Width, f.Height)
}

// DefaultAlign is the width alignment RoundNearest applies when callers pass
// a non-positive align. Matches the 32-pixel alignment host media subsystems
// commonly require.
const DefaultAlign = 32

// RoundNearest adjusts a requested geometry to one the engine can serve:
// width snaps to the nearest multiple of align, height follows proportionally
// and snaps to the nearest even value so 4:2:0 and 4:2:2 layouts stay legal.
func RoundNearest(width, height, align int) (int, int) {
	if align <= 0 {
		align = DefaultAlign
	}
	if width <= 0 {
		width = align
	}
	if height <= 0 {
		height = 2
	}

	w := int(math.Round(float64(width)/float64(align))) * align
	if w < align {
		w = align
	}

	h := int(math.Round(float64(height) * float64(w) / float64(width)))
	h = (h + 1) &^ 1
	if h < 2 {
		h = 2
	}
	return w, h
}
