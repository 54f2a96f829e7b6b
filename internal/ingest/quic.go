package ingest

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/quic-go/quic-go"
)

// ALPNProtocol is the ALPN identifier producers must negotiate when
// connecting over QUIC.
const ALPNProtocol = "mirage-ingest/1"

// quicIdleTimeout closes producer connections that go silent, so a
// vanished producer releases its device without waiting on TCP-style
// keepalive tuning.
const quicIdleTimeout = 30 * time.Second

// QUICServer accepts producer connections over QUIC. Each connection
// carries a single stream speaking the same wire protocol as TCP.
type QUICServer struct {
	log      *slog.Logger
	addr     string
	registry *Registry
	tlsConf  *tls.Config
}

// NewQUICServer creates a QUIC ingest server. The TLS config is cloned
// and pinned to the ingest ALPN. If log is nil, slog.Default() is used.
func NewQUICServer(addr string, registry *Registry, tlsConf *tls.Config, log *slog.Logger) *QUICServer {
	if log == nil {
		log = slog.Default()
	}
	tlsConf = tlsConf.Clone()
	tlsConf.NextProtos = []string{ALPNProtocol}
	return &QUICServer{
		log:      log.With("component", "ingest-quic"),
		addr:     addr,
		registry: registry,
		tlsConf:  tlsConf,
	}
}

// Start listens on the configured address and serves producer connections
// until ctx is cancelled.
func (s *QUICServer) Start(ctx context.Context) error {
	ln, err := quic.ListenAddr(s.addr, s.tlsConf, &quic.Config{
		MaxIdleTimeout: quicIdleTimeout,
	})
	if err != nil {
		return fmt.Errorf("quic listen on %s: %w", s.addr, err)
	}

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	s.log.Info("listening", "addr", ln.Addr().String())

	for {
		conn, err := ln.Accept(ctx)
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

func (s *QUICServer) handleConn(ctx context.Context, conn quic.Connection) {
	defer conn.CloseWithError(0, "done")

	str, err := conn.AcceptStream(ctx)
	if err != nil {
		s.log.Debug("no stream from producer", "remote", conn.RemoteAddr().String(), "error", err)
		return
	}

	serveProducer(str, conn.RemoteAddr().String(), "quic", s.registry, s.log)
}
