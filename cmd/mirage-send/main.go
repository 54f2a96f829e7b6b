// Command mirage-send pushes frames into a running mirage device over the
// ingest protocol. The source is a PNG/BMP file, a live screen capture, or
// generated color bars; frames are paced at the requested rate.
package main

import (
	"bufio"
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"image"
	"image/draw"
	"io"
	"net"
	"os"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/vova616/screenshot"

	"github.com/zsiec/mirage/internal/ingest"
	"github.com/zsiec/mirage/internal/testpattern"
	"github.com/zsiec/mirage/internal/transform"
	"github.com/zsiec/mirage/media"
)

const (
	writeBufferSize = 256 * 1024
	dialTimeout     = 5 * time.Second
)

func main() {
	addrFlag := flag.String("addr", "127.0.0.1:7000", "Ingest server address")
	quicFlag := flag.Bool("quic", false, "Dial over QUIC instead of TCP")
	keyFlag := flag.String("key", "cam0", "Device key to feed")
	fileFlag := flag.String("file", "", "PNG or BMP image to send (default: generated bars)")
	screenFlag := flag.Bool("screen", false, "Capture the screen for every frame")
	formatFlag := flag.String("format", "RGB24", "Wire pixel format (RGB24, YUY2, NV12, ...)")
	fpsFlag := flag.String("fps", "30", "Frame rate, e.g. 30 or 30000/1001")
	durationFlag := flag.Float64("duration", 0, "Seconds to run (0 = until interrupted)")
	widthFlag := flag.Int("width", 640, "Bar pattern width (ignored with --file or --screen)")
	heightFlag := flag.Int("height", 480, "Bar pattern height (ignored with --file or --screen)")
	flag.Parse()

	if *fileFlag != "" && *screenFlag {
		fatal("--file and --screen are mutually exclusive")
	}

	pix, err := media.ParsePixelFormat(*formatFlag)
	if err != nil {
		fatal("%v", err)
	}
	rate, err := media.ParseFraction(*fpsFlag)
	if err != nil {
		fatal("%v", err)
	}

	next, desc := frameSource(*fileFlag, *screenFlag, pix, *widthFlag, *heightFlag)
	fmt.Printf("Source: %s, format %s at %s fps\n", desc, pix, rate)

	push(*addrFlag, *quicFlag, *keyFlag, next, rate, *durationFlag)
}

// frameSource returns a producer of wire frames plus a description for logs.
// File and bar sources encode once; the screen source captures per frame.
func frameSource(file string, screen bool, pix media.PixelFormat, width, height int) (func() (*media.Frame, error), string) {
	if screen {
		return func() (*media.Frame, error) {
			img, err := screenshot.CaptureScreen()
			if err != nil {
				return nil, fmt.Errorf("screen capture: %w", err)
			}
			img = evenCrop(img)
			b := img.Bounds()
			return transform.Encode(img, media.VideoFormat{
				PixelFormat: pix,
				Width:       b.Dx(),
				Height:      b.Dy(),
			})
		}, "screen capture"
	}

	var img *image.RGBA
	desc := fmt.Sprintf("color bars %dx%d", width, height)
	if file != "" {
		loaded, err := testpattern.Load(file)
		if err != nil {
			fatal("%v", err)
		}
		img = evenCrop(loaded)
		desc = file
	} else {
		img = evenCrop(testpattern.Generate(width, height))
	}

	b := img.Bounds()
	frame, err := transform.Encode(img, media.VideoFormat{
		PixelFormat: pix,
		Width:       b.Dx(),
		Height:      b.Dy(),
	})
	if err != nil {
		fatal("%v", err)
	}
	return func() (*media.Frame, error) { return frame, nil }, desc
}

// evenCrop trims an image to even dimensions rooted at the origin, which
// every supported chroma layout can encode.
func evenCrop(img *image.RGBA) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx()&^1, b.Dy()&^1
	if w == b.Dx() && h == b.Dy() && b.Min == (image.Point{}) {
		return img
	}
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

func push(addr string, useQUIC bool, key string, next func() (*media.Frame, error), rate media.Fraction, duration float64) {
	transport := "TCP"
	if useQUIC {
		transport = "QUIC"
	}

	var deadline time.Time
	if duration > 0 {
		deadline = time.Now().Add(time.Duration(duration * float64(time.Second)))
	}

	for {
		if !deadline.IsZero() && time.Now().After(deadline) {
			return
		}

		fmt.Printf("[%s] Connecting to %s %s...\n", key, transport, addr)
		conn, err := dial(useQUIC, addr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[%s] Connect failed: %v, retrying...\n", key, err)
			time.Sleep(time.Second)
			continue
		}

		fmt.Printf("[%s] Connected, streaming continuously\n", key)
		writeErr := streamLoop(conn, key, next, rate, deadline)
		conn.Close()

		if writeErr == nil {
			return
		}
		fmt.Fprintf(os.Stderr, "[%s] Connection lost: %v, reconnecting...\n", key, writeErr)
		time.Sleep(time.Second)
	}
}

func streamLoop(conn io.Writer, key string, next func() (*media.Frame, error), rate media.Fraction, deadline time.Time) error {
	w := bufio.NewWriterSize(conn, writeBufferSize)
	if err := ingest.WriteHello(w, ingest.Hello{Version: ingest.Version, Key: key}); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}

	globalStart := time.Now()
	var framesSent int64
	lastLog := time.Now()
	const logInterval = 10 * time.Second
	fps := rate.FPS()

	for {
		if !deadline.IsZero() && time.Now().After(deadline) {
			fmt.Printf("[%s] Done: %d frames in %s\n",
				key, framesSent, time.Since(globalStart).Truncate(time.Second))
			return nil
		}

		frame, err := next()
		if err != nil {
			return err
		}
		if err := ingest.WriteFrame(w, frame, time.Now().UnixNano()); err != nil {
			return err
		}
		if err := w.Flush(); err != nil {
			return err
		}
		framesSent++

		// Pace against the global clock so timing stays continuous even
		// when a capture or write runs slow -- no compensating burst.
		expectedTime := float64(framesSent) / fps
		elapsed := time.Since(globalStart).Seconds()
		if expectedTime > elapsed {
			time.Sleep(time.Duration((expectedTime - elapsed) * float64(time.Second)))
		}

		if time.Since(lastLog) >= logInterval {
			actualRate := float64(framesSent) / time.Since(globalStart).Seconds()
			fmt.Printf("[%s] frames=%d rate=%.1f fps (target=%.1f)\n",
				key, framesSent, actualRate, fps)
			lastLog = time.Now()
		}
	}
}

// dial opens the producer transport. The QUIC path returns the single
// outbound stream wrapped so Close tears down the whole connection.
func dial(useQUIC bool, addr string) (io.WriteCloser, error) {
	if !useQUIC {
		return net.DialTimeout("tcp", addr, dialTimeout)
	}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	tlsConf := &tls.Config{
		InsecureSkipVerify: true, // the listener serves a self-signed cert
		NextProtos:         []string{ingest.ALPNProtocol},
	}
	conn, err := quic.DialAddr(ctx, addr, tlsConf, &quic.Config{})
	if err != nil {
		return nil, err
	}
	str, err := conn.OpenStreamSync(ctx)
	if err != nil {
		conn.CloseWithError(0, "open stream failed")
		return nil, err
	}
	return &quicStream{Stream: str, conn: conn}, nil
}

type quicStream struct {
	quic.Stream
	conn quic.Connection
}

func (s *quicStream) Close() error {
	s.Stream.Close()
	return s.conn.CloseWithError(0, "done")
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
