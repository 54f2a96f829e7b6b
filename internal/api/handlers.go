package api

import (
	"bytes"
	"image/png"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zsiec/mirage/internal/clock"
	"github.com/zsiec/mirage/internal/ingest"
	"github.com/zsiec/mirage/internal/stream"
	"github.com/zsiec/mirage/internal/transform"
	"github.com/zsiec/mirage/media"
)

type mirrorState struct {
	Horizontal bool `json:"horizontal"`
	Vertical   bool `json:"vertical"`
}

type deviceResponse struct {
	Key         string              `json:"key"`
	Name        string              `json:"name"`
	CreatedAt   int64               `json:"createdAt"`
	Format      media.VideoFormat   `json:"format"`
	FrameRate   media.Fraction      `json:"frameRate"`
	Mirror      mirrorState         `json:"mirror"`
	Scaling     string              `json:"scaling"`
	AspectRatio string              `json:"aspectRatio"`
	Stats       stream.Stats        `json:"stats"`
	Formats     []media.VideoFormat `json:"formats,omitempty"`
	Clock       *clock.Snapshot     `json:"clock,omitempty"`
}

func deviceSummary(d *stream.Device) deviceResponse {
	st := d.Stream
	h, v := st.Mirror()
	return deviceResponse{
		Key:         d.Key,
		Name:        d.Name,
		CreatedAt:   d.CreatedAt.UnixMilli(),
		Format:      st.Format(),
		FrameRate:   st.FrameRate(),
		Mirror:      mirrorState{Horizontal: h, Vertical: v},
		Scaling:     st.Scaling().String(),
		AspectRatio: st.AspectRatio().String(),
		Stats:       st.Stats(),
	}
}

func deviceDetail(d *stream.Device) deviceResponse {
	resp := deviceSummary(d)
	resp.Formats = d.Stream.Formats()
	snap := d.Stream.ClockSnapshot()
	resp.Clock = &snap
	return resp
}

// device resolves the :key path parameter, writing a 404 when no device
// matches.
func (s *Server) device(c *gin.Context) (*stream.Device, bool) {
	d, ok := s.mgr.Get(c.Param("key"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown device"})
	}
	return d, ok
}

func (s *Server) listDevices(c *gin.Context) {
	devices := s.mgr.List()
	out := make([]deviceResponse, 0, len(devices))
	for _, d := range devices {
		out = append(out, deviceSummary(d))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getDevice(c *gin.Context) {
	d, ok := s.device(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, deviceDetail(d))
}

func (s *Server) startDevice(c *gin.Context) {
	d, ok := s.device(c)
	if !ok {
		return
	}
	if d.Stream.Running() {
		c.JSON(http.StatusConflict, gin.H{"error": "already running"})
		return
	}
	if !d.Stream.Start() {
		c.JSON(http.StatusConflict, gin.H{"error": "stream has no startable format"})
		return
	}
	c.JSON(http.StatusOK, deviceSummary(d))
}

func (s *Server) stopDevice(c *gin.Context) {
	d, ok := s.device(c)
	if !ok {
		return
	}
	d.Stream.Stop()
	c.JSON(http.StatusOK, deviceSummary(d))
}

type broadcastingRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func (s *Server) setBroadcasting(c *gin.Context) {
	d, ok := s.device(c)
	if !ok {
		return
	}
	var req broadcastingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	d.Stream.SetBroadcasting(*req.Enabled)
	c.JSON(http.StatusOK, deviceSummary(d))
}

type mirrorRequest struct {
	Horizontal *bool `json:"horizontal" binding:"required"`
	Vertical   *bool `json:"vertical" binding:"required"`
}

func (s *Server) setMirror(c *gin.Context) {
	d, ok := s.device(c)
	if !ok {
		return
	}
	var req mirrorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	d.Stream.SetMirror(*req.Horizontal, *req.Vertical)
	c.JSON(http.StatusOK, deviceSummary(d))
}

type modeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

func (s *Server) setScaling(c *gin.Context) {
	d, ok := s.device(c)
	if !ok {
		return
	}
	var req modeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	scaling, err := transform.ParseScaling(req.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	d.Stream.SetScaling(scaling)
	c.JSON(http.StatusOK, deviceSummary(d))
}

func (s *Server) setAspect(c *gin.Context) {
	d, ok := s.device(c)
	if !ok {
		return
	}
	var req modeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	aspect, err := transform.ParseAspectRatio(req.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	d.Stream.SetAspectRatio(aspect)
	c.JSON(http.StatusOK, deviceSummary(d))
}

type frameRateRequest struct {
	Rate string `json:"rate" binding:"required"`
}

func (s *Server) setFrameRate(c *gin.Context) {
	d, ok := s.device(c)
	if !ok {
		return
	}
	var req frameRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rate, err := media.ParseFraction(req.Rate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	d.Stream.SetFrameRate(rate)
	c.JSON(http.StatusOK, deviceSummary(d))
}

func (s *Server) snapshot(c *gin.Context) {
	d, ok := s.device(c)
	if !ok {
		return
	}
	frame := d.Stream.CurrentFrame()
	if frame == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no current frame"})
		return
	}
	img, err := transform.Decode(frame)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func (s *Server) listSessions(c *gin.Context) {
	if s.sessions == nil {
		c.JSON(http.StatusOK, []ingest.SessionStats{})
		return
	}
	c.JSON(http.StatusOK, s.sessions.Sessions())
}
