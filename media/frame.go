package media

// Frame is a single raw video picture: a format describing the pixel layout
// and a byte slice holding exactly one frame's worth of pixels. Frames are
// value containers; ownership of Data passes with the Frame, and code that
// needs an independent copy must Clone.
type Frame struct {
	Format VideoFormat
	Data   []byte
}

// NewFrame allocates a zeroed frame sized for the given format. Returns nil
// if the format describes no storable frame.
func NewFrame(format VideoFormat) *Frame {
	size := format.FrameSize()
	if size <= 0 {
		return nil
	}
	return &Frame{
		Format: format,
		Data:   make([]byte, size),
	}
}

// Clone returns a deep copy of the frame with its own pixel storage.
func (f *Frame) Clone() *Frame {
	if f == nil {
		return nil
	}
	data := make([]byte, len(f.Data))
	copy(data, f.Data)
	return &Frame{Format: f.Format, Data: data}
}

// Size returns the number of pixel bytes the frame holds.
func (f *Frame) Size() int {
	if f == nil {
		return 0
	}
	return len(f.Data)
}

// Complete reports whether the frame carries at least as many bytes as its
// format requires. Short frames come from truncated ingestion reads and are
// rejected before they reach the sample queue.
func (f *Frame) Complete() bool {
	if f == nil {
		return false
	}
	need := f.Format.FrameSize()
	return need > 0 && len(f.Data) >= need
}
