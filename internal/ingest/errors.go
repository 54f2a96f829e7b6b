package ingest

import (
	"errors"
	"fmt"
)

// Sentinel errors for producer attachment and wire decoding.
var (
	// ErrUnknownDevice is returned when a producer names a device key
	// that no stream is registered under.
	ErrUnknownDevice = errors.New("ingest: unknown device")

	// ErrDeviceBusy is returned when a producer attaches to a device
	// that already has an active producer session.
	ErrDeviceBusy = errors.New("ingest: device already has an active producer")

	// ErrBadMagic is returned when a connection opens with bytes that
	// are not a producer hello.
	ErrBadMagic = errors.New("ingest: bad hello magic")

	// ErrVersionMismatch is returned when a producer speaks a wire
	// protocol version this server does not.
	ErrVersionMismatch = errors.New("ingest: unsupported protocol version")

	// ErrFrameTooLarge is returned when a frame header announces a
	// payload above MaxFrameBytes.
	ErrFrameTooLarge = errors.New("ingest: frame exceeds size limit")
)

// ParseError reports a wire decode failure, identifying the field that
// failed so a misbehaving producer can be diagnosed from server logs.
type ParseError struct {
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("ingest: parse %s: %v", e.Field, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
