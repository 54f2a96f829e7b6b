package media

import "testing"

func TestNewFrame(t *testing.T) {
	format := VideoFormat{PixelFormat: PixelFormatYUY2, Width: 640, Height: 480}
	frame := NewFrame(format)
	if frame == nil {
		t.Fatal("NewFrame returned nil for a valid format")
	}
	if got, want := frame.Size(), 640*480*2; got != want {
		t.Errorf("Size() = %d, want %d", got, want)
	}
	if !frame.Complete() {
		t.Error("freshly allocated frame should be complete")
	}

	if f := NewFrame(VideoFormat{}); f != nil {
		t.Error("NewFrame should return nil for an empty format")
	}
}

func TestFrameClone(t *testing.T) {
	format := VideoFormat{PixelFormat: PixelFormatRGB24, Width: 4, Height: 4}
	frame := NewFrame(format)
	frame.Data[0] = 0xAA

	clone := frame.Clone()
	if clone == frame {
		t.Fatal("Clone returned the same frame")
	}
	if clone.Data[0] != 0xAA {
		t.Error("Clone did not copy pixel data")
	}

	clone.Data[0] = 0x55
	if frame.Data[0] != 0xAA {
		t.Error("mutating the clone changed the original")
	}

	var nilFrame *Frame
	if nilFrame.Clone() != nil {
		t.Error("nil.Clone() should be nil")
	}
	if nilFrame.Size() != 0 {
		t.Error("nil.Size() should be 0")
	}
	if nilFrame.Complete() {
		t.Error("nil frame should not be complete")
	}
}

func TestFrameComplete(t *testing.T) {
	format := VideoFormat{PixelFormat: PixelFormatRGB24, Width: 4, Height: 4}
	short := &Frame{Format: format, Data: make([]byte, format.FrameSize()-1)}
	if short.Complete() {
		t.Error("truncated frame should not be complete")
	}
}
