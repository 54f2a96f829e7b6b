package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
)

// readBufferSize is the buffered-reader size for producer connections,
// large enough to take a frame header and a chunk of payload in one fill.
const readBufferSize = 64 << 10

// Server accepts producer connections over TCP.
type Server struct {
	log      *slog.Logger
	addr     string
	registry *Registry
}

// NewServer creates a TCP ingest server that attaches incoming producers
// through registry. If log is nil, slog.Default() is used.
func NewServer(addr string, registry *Registry, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		log:      log.With("component", "ingest-tcp"),
		addr:     addr,
		registry: registry,
	}
}

// Start listens on the configured address and serves producer connections
// until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("ingest listen on %s: %w", s.addr, err)
	}

	stop := context.AfterFunc(ctx, func() { l.Close() })
	defer stop()

	s.log.Info("listening", "addr", l.Addr().String())

	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Warn("accept failed", "error", err)
			continue
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	serveProducer(conn, conn.RemoteAddr().String(), "tcp", s.registry, s.log)
}

// serveProducer runs one producer session over r: hello, attach, frame
// loop, detach. Shared by the TCP and QUIC transports.
func serveProducer(r io.Reader, remote, transport string, reg *Registry, log *slog.Logger) {
	br := bufio.NewReaderSize(r, readBufferSize)

	hello, err := ReadHello(br)
	if err != nil {
		log.Warn("rejecting producer", "remote", remote, "error", err)
		return
	}

	sess, err := reg.Attach(hello.Key, remote, transport)
	if err != nil {
		log.Warn("rejecting producer", "remote", remote, "key", hello.Key, "error", err)
		return
	}
	defer reg.Detach(sess)

	for {
		frame, pts, err := ReadFrame(br)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debug("producer read ended", "key", hello.Key, "session", sess.ID, "error", err)
			}
			return
		}
		sess.IngestFrame(frame, pts)
	}
}
