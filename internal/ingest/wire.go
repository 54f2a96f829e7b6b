package ingest

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/zsiec/mirage/media"
)

// Wire protocol constants. All integers on the wire are big-endian.
const (
	// Magic opens every producer hello ("MIRG").
	Magic uint32 = 0x4D495247

	// Version is the wire protocol version this package speaks.
	Version uint16 = 1

	// MaxFrameBytes bounds a single frame payload. Anything larger is
	// treated as a corrupt or hostile producer.
	MaxFrameBytes = 64 << 20

	// MaxKeyBytes bounds the device key length in a hello.
	MaxKeyBytes = 255

	// PTSUnset marks a frame whose producer supplied no capture time.
	PTSUnset int64 = -1
)

// Hello is the first message on a producer connection: the protocol
// version the producer speaks and the device key it wants to feed.
type Hello struct {
	Version uint16
	Key     string
}

// WriteHello writes a producer hello: magic, version, key length, key.
func WriteHello(w io.Writer, h Hello) error {
	key := []byte(h.Key)
	if len(key) == 0 || len(key) > MaxKeyBytes {
		return &ParseError{Field: "key", Err: fmt.Errorf("length %d outside 1..%d", len(key), MaxKeyBytes)}
	}

	buf := make([]byte, 0, 8+len(key))
	buf = binary.BigEndian.AppendUint32(buf, Magic)
	buf = binary.BigEndian.AppendUint16(buf, h.Version)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(key)))
	buf = append(buf, key...)

	_, err := w.Write(buf)
	return err
}

// ReadHello reads and validates a producer hello. The magic and version
// are checked here so transports can reject a bad producer before any
// device state is touched.
func ReadHello(r io.Reader) (Hello, error) {
	var head [8]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return Hello{}, &ParseError{Field: "hello", Err: err}
	}

	if magic := binary.BigEndian.Uint32(head[0:4]); magic != Magic {
		return Hello{}, &ParseError{Field: "magic", Err: fmt.Errorf("%w: got 0x%08X", ErrBadMagic, magic)}
	}
	if v := binary.BigEndian.Uint16(head[4:6]); v != Version {
		return Hello{}, &ParseError{Field: "version", Err: fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, v, Version)}
	}

	keyLen := int(binary.BigEndian.Uint16(head[6:8]))
	if keyLen == 0 || keyLen > MaxKeyBytes {
		return Hello{}, &ParseError{Field: "keyLen", Err: fmt.Errorf("length %d outside 1..%d", keyLen, MaxKeyBytes)}
	}

	key := make([]byte, keyLen)
	if _, err := io.ReadFull(r, key); err != nil {
		return Hello{}, &ParseError{Field: "key", Err: err}
	}

	return Hello{Version: Version, Key: string(key)}, nil
}

// WriteFrame writes one frame message: fourcc, width, height, pts, payload
// length, payload. The payload must be exactly the frame size implied by
// the format; pts is the producer's capture time in Unix nanoseconds, or
// PTSUnset.
func WriteFrame(w io.Writer, frame *media.Frame, pts int64) error {
	if frame == nil {
		return &ParseError{Field: "frame", Err: fmt.Errorf("nil frame")}
	}
	want := frame.Format.FrameSize()
	if want <= 0 || len(frame.Data) != want {
		return &ParseError{Field: "dataLen", Err: fmt.Errorf("payload is %d bytes, %s wants %d", len(frame.Data), frame.Format, want)}
	}

	var head [24]byte
	binary.BigEndian.PutUint32(head[0:4], uint32(frame.Format.PixelFormat))
	binary.BigEndian.PutUint32(head[4:8], uint32(frame.Format.Width))
	binary.BigEndian.PutUint32(head[8:12], uint32(frame.Format.Height))
	binary.BigEndian.PutUint64(head[12:20], uint64(pts))
	binary.BigEndian.PutUint32(head[20:24], uint32(len(frame.Data)))

	if _, err := w.Write(head[:]); err != nil {
		return err
	}
	_, err := w.Write(frame.Data)
	return err
}

// ReadFrame reads one frame message. A clean close between frames returns
// io.EOF; any partial or malformed message returns a ParseError. The
// returned format carries geometry only, frame rates being a stream
// property rather than a wire one.
func ReadFrame(r io.Reader) (*media.Frame, int64, error) {
	var head [24]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		if err == io.EOF {
			return nil, 0, io.EOF
		}
		return nil, 0, &ParseError{Field: "frame header", Err: err}
	}

	format := media.VideoFormat{
		PixelFormat: media.PixelFormat(binary.BigEndian.Uint32(head[0:4])),
		Width:       int(binary.BigEndian.Uint32(head[4:8])),
		Height:      int(binary.BigEndian.Uint32(head[8:12])),
	}
	pts := int64(binary.BigEndian.Uint64(head[12:20]))
	dataLen := int(binary.BigEndian.Uint32(head[20:24]))

	if dataLen > MaxFrameBytes {
		return nil, 0, &ParseError{Field: "dataLen", Err: fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, dataLen)}
	}
	if err := format.Validate(); err != nil {
		return nil, 0, &ParseError{Field: "format", Err: err}
	}
	if want := format.FrameSize(); dataLen != want {
		return nil, 0, &ParseError{Field: "dataLen", Err: fmt.Errorf("got %d bytes, %s wants %d", dataLen, format, want)}
	}

	data := make([]byte, dataLen)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, 0, &ParseError{Field: "data", Err: err}
	}

	return &media.Frame{Format: format, Data: data}, pts, nil
}
