// Package api exposes the device control surface over HTTP: listing and
// inspecting devices, starting and stopping their schedulers, flipping
// broadcast and filter settings, and grabbing PNG snapshots.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zsiec/mirage/internal/ingest"
	"github.com/zsiec/mirage/internal/stream"
)

// shutdownTimeout bounds how long in-flight requests may run once the
// server context is cancelled.
const shutdownTimeout = 5 * time.Second

// Server is the HTTP control API.
type Server struct {
	log      *slog.Logger
	addr     string
	router   *gin.Engine
	mgr      *stream.Manager
	sessions *ingest.Registry
}

// NewServer creates the control API over the given device manager.
// sessions may be nil if no ingest transport is running; log may be nil.
func NewServer(addr string, mgr *stream.Manager, sessions *ingest.Registry, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "api")

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(accessLog(log))

	s := &Server{
		log:      log,
		addr:     addr,
		router:   router,
		mgr:      mgr,
		sessions: sessions,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/devices", s.listDevices)
		v1.GET("/devices/:key", s.getDevice)
		v1.POST("/devices/:key/start", s.startDevice)
		v1.POST("/devices/:key/stop", s.stopDevice)
		v1.PUT("/devices/:key/broadcasting", s.setBroadcasting)
		v1.PUT("/devices/:key/mirror", s.setMirror)
		v1.PUT("/devices/:key/scaling", s.setScaling)
		v1.PUT("/devices/:key/aspect", s.setAspect)
		v1.PUT("/devices/:key/framerate", s.setFrameRate)
		v1.GET("/devices/:key/snapshot", s.snapshot)
		v1.GET("/sessions", s.listSessions)
	}
}

// Router returns the gin engine, for tests and embedding.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start serves the API until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.router,
	}

	stop := context.AfterFunc(ctx, func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			s.log.Warn("shutdown", "error", err)
		}
	})
	defer stop()

	s.log.Info("listening", "addr", s.addr)

	err := srv.ListenAndServe()
	if ctx.Err() != nil || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// accessLog records each request at debug level.
func accessLog(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
