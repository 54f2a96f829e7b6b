package media

import (
	"encoding/json"
	"testing"
	"time"
)

func TestPixelFormatFrameSize(t *testing.T) {
	tests := []struct {
		format PixelFormat
		w, h   int
		want   int
	}{
		{PixelFormatRGB24, 640, 480, 640 * 480 * 3},
		{PixelFormatBGR24, 640, 480, 640 * 480 * 3},
		{PixelFormatRGB32, 640, 480, 640 * 480 * 4},
		{PixelFormatYUY2, 640, 480, 640 * 480 * 2},
		{PixelFormatUYVY, 640, 480, 640 * 480 * 2},
		{PixelFormatNV12, 640, 480, 640 * 480 * 3 / 2},
		{PixelFormatI420, 640, 480, 640 * 480 * 3 / 2},
		// odd geometry: 4:2:0 chroma planes round up
		{PixelFormatI420, 3, 3, 9 + 2*2*2},
		{PixelFormatRGB24, 0, 480, 0},
		{PixelFormatRGB24, 640, -1, 0},
		{PixelFormat(0), 640, 480, 0},
	}
	for _, tt := range tests {
		if got := tt.format.FrameSize(tt.w, tt.h); got != tt.want {
			t.Errorf("%s.FrameSize(%d, %d) = %d, want %d", tt.format, tt.w, tt.h, got, tt.want)
		}
	}
}

func TestPixelFormatFourCC(t *testing.T) {
	tests := []struct {
		format PixelFormat
		want   string
	}{
		{PixelFormatYUY2, "YUYV"},
		{PixelFormatUYVY, "UYVY"},
		{PixelFormatNV12, "NV12"},
		{PixelFormatI420, "YU12"},
		{PixelFormatRGB24, "RGB3"},
	}
	for _, tt := range tests {
		if got := tt.format.FourCC(); got != tt.want {
			t.Errorf("%s.FourCC() = %q, want %q", tt.format, got, tt.want)
		}
	}
}

func TestParsePixelFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    PixelFormat
		wantErr bool
	}{
		{"YUY2", PixelFormatYUY2, false},
		{"yuyv", PixelFormatYUY2, false},
		{" rgb24 ", PixelFormatRGB24, false},
		{"I420", PixelFormatI420, false},
		{"YU12", PixelFormatI420, false},
		{"mjpeg", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParsePixelFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePixelFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePixelFormat(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestPixelFormatJSONRoundTrip(t *testing.T) {
	for _, p := range []PixelFormat{
		PixelFormatRGB24, PixelFormatBGR24, PixelFormatRGB32,
		PixelFormatYUY2, PixelFormatUYVY, PixelFormatNV12, PixelFormatI420,
	} {
		data, err := json.Marshal(p)
		if err != nil {
			t.Fatalf("Marshal(%s): %v", p, err)
		}
		if want := `"` + p.String() + `"`; string(data) != want {
			t.Errorf("Marshal(%s) = %s, want %s", p, data, want)
		}
		var got PixelFormat
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("Unmarshal(%s): %v", data, err)
		}
		if got != p {
			t.Errorf("round trip of %s gave %s", p, got)
		}
	}

	var bad PixelFormat
	if err := json.Unmarshal([]byte(`"mjpeg"`), &bad); err == nil {
		t.Error("unknown format name accepted")
	}
}

func TestFractionInterval(t *testing.T) {
	tests := []struct {
		f    Fraction
		want time.Duration
	}{
		{Fraction{30, 1}, time.Second / 30},
		{Fraction{1, 2}, 2 * time.Second},
		{Fraction{30000, 1001}, 33366666 * time.Nanosecond},
		{Fraction{0, 1}, 0},
		{Fraction{30, 0}, 0},
	}
	for _, tt := range tests {
		got := tt.f.Interval()
		diff := got - tt.want
		if diff < 0 {
			diff = -diff
		}
		if diff > time.Nanosecond {
			t.Errorf("Fraction%v.Interval() = %v, want %v", tt.f, got, tt.want)
		}
	}
}

func TestParseFraction(t *testing.T) {
	tests := []struct {
		in      string
		want    Fraction
		wantErr bool
	}{
		{"30", Fraction{30, 1}, false},
		{"30/1", Fraction{30, 1}, false},
		{"30000/1001", Fraction{30000, 1001}, false},
		{"0", Fraction{}, true},
		{"30/0", Fraction{}, true},
		{"-5", Fraction{}, true},
		{"abc", Fraction{}, true},
	}
	for _, tt := range tests {
		got, err := ParseFraction(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFraction(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFraction(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFractionString(t *testing.T) {
	if got := (Fraction{30, 1}).String(); got != "30" {
		t.Errorf("String() = %q, want %q", got, "30")
	}
	if got := (Fraction{30000, 1001}).String(); got != "30000/1001" {
		t.Errorf("String() = %q, want %q", got, "30000/1001")
	}
}

func TestRoundNearest(t *testing.T) {
	tests := []struct {
		w, h, align  int
		wantW, wantH int
	}{
		{640, 480, 32, 640, 480},
		{641, 480, 32, 640, 480},
		{650, 480, 32, 640, 474},
		{660, 480, 32, 672, 490},
		{1, 1, 32, 32, 32},
		{1920, 1080, 32, 1920, 1080},
		{100, 100, 32, 96, 96},
		{640, 480, 0, 640, 480}, // align <= 0 falls back to DefaultAlign
		{640, 479, 16, 640, 480},
	}
	for _, tt := range tests {
		gotW, gotH := RoundNearest(tt.w, tt.h, tt.align)
		if gotW != tt.wantW || gotH != tt.wantH {
			t.Errorf("RoundNearest(%d, %d, %d) = (%d, %d), want (%d, %d)",
				tt.w, tt.h, tt.align, gotW, gotH, tt.wantW, tt.wantH)
		}
		if tt.align > 0 && gotW%tt.align != 0 {
			t.Errorf("RoundNearest(%d, %d, %d) width %d not aligned", tt.w, tt.h, tt.align, gotW)
		}
		if gotH%2 != 0 {
			t.Errorf("RoundNearest(%d, %d, %d) height %d not even", tt.w, tt.h, tt.align, gotH)
		}
	}
}

func TestVideoFormatValidate(t *testing.T) {
	good := VideoFormat{
		PixelFormat: PixelFormatYUY2,
		Width:       640,
		Height:      480,
		FrameRates:  []Fraction{{30, 1}, {20, 1}},
	}
	if err := good.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}

	bad := []VideoFormat{
		{PixelFormat: PixelFormat(0xdead), Width: 640, Height: 480},
		{PixelFormat: PixelFormatYUY2, Width: 0, Height: 480},
		{PixelFormat: PixelFormatYUY2, Width: 640, Height: -1},
		{PixelFormat: PixelFormatYUY2, Width: 640, Height: 480, FrameRates: []Fraction{{0, 1}}},
	}
	for i, f := range bad {
		if err := f.Validate(); err == nil {
			t.Errorf("Validate() case %d = nil, want error", i)
		}
	}
}

func TestVideoFormatEqual(t *testing.T) {
	a := VideoFormat{PixelFormat: PixelFormatYUY2, Width: 640, Height: 480, FrameRates: []Fraction{{30, 1}}}
	b := VideoFormat{PixelFormat: PixelFormatYUY2, Width: 640, Height: 480, FrameRates: []Fraction{{15, 1}}}
	c := VideoFormat{PixelFormat: PixelFormatNV12, Width: 640, Height: 480}

	if !a.Equal(b) {
		t.Error("formats differing only in frame rates should be equal")
	}
	if a.Equal(c) {
		t.Error("formats with different pixel layouts should not be equal")
	}
}
