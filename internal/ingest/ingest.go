// Package ingest accepts frame producers over TCP and QUIC, decodes
// their wire traffic, and routes frames into device streams. One
// producer may feed a device at a time; while attached, the device
// broadcasts the producer's frames instead of its test frame.
package ingest

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/zsiec/mirage/internal/stream"
	"github.com/zsiec/mirage/media"
)

// Binder resolves device keys to the streams producer frames land in.
// A stream.Manager satisfies it through ManagerBinder.
type Binder interface {
	Lookup(key string) (*stream.Stream, bool)
}

// ManagerBinder adapts a stream.Manager to the Binder interface.
type ManagerBinder struct {
	Manager *stream.Manager
}

// Lookup resolves key through the manager's device registry.
func (b ManagerBinder) Lookup(key string) (*stream.Stream, bool) {
	d, ok := b.Manager.Get(key)
	if !ok {
		return nil, false
	}
	return d.Stream, true
}

// SessionStats captures connection-level metrics for a producer session,
// exposed via the control API for monitoring source health.
type SessionStats struct {
	ID             string `json:"id"`
	Key            string `json:"key"`
	RemoteAddr     string `json:"remoteAddr"`
	Transport      string `json:"transport"`
	ConnectedAt    int64  `json:"connectedAt"`
	UptimeMs       int64  `json:"uptimeMs"`
	BytesReceived  int64  `json:"bytesReceived"`
	FramesReceived int64  `json:"framesReceived"`
	LastPTS        int64  `json:"lastPts"`
}

// Session is one active producer feeding one device stream.
type Session struct {
	ID        string
	Key       string
	Remote    string
	Transport string
	StartedAt time.Time

	stream *stream.Stream

	bytesReceived  atomic.Int64
	framesReceived atomic.Int64
	lastPTS        atomic.Int64
}

// IngestFrame forwards one producer frame into the device stream and
// updates the session counters. pts is the producer's capture time in
// Unix nanoseconds, or PTSUnset.
func (s *Session) IngestFrame(frame *media.Frame, pts int64) {
	s.bytesReceived.Add(int64(len(frame.Data)))
	s.framesReceived.Add(1)
	s.lastPTS.Store(pts)
	s.stream.IngestFrame(frame)
}

// Stats returns a snapshot of session metrics.
func (s *Session) Stats() SessionStats {
	return SessionStats{
		ID:             s.ID,
		Key:            s.Key,
		RemoteAddr:     s.Remote,
		Transport:      s.Transport,
		ConnectedAt:    s.StartedAt.UnixMilli(),
		UptimeMs:       time.Since(s.StartedAt).Milliseconds(),
		BytesReceived:  s.bytesReceived.Load(),
		FramesReceived: s.framesReceived.Load(),
		LastPTS:        s.lastPTS.Load(),
	}
}

// Registry tracks active producer sessions by device key and enforces
// the one-producer-per-device rule. It is the rendezvous point between
// the transport servers and the frame engines.
type Registry struct {
	log    *slog.Logger
	binder Binder

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates a Registry resolving device keys through binder.
// If log is nil, slog.Default() is used.
func NewRegistry(binder Binder, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		log:      log.With("component", "ingest"),
		binder:   binder,
		sessions: make(map[string]*Session),
	}
}

// Attach claims the device named by key for one producer and switches it
// to broadcasting. Returns ErrUnknownDevice if no stream is bound to key
// and ErrDeviceBusy if another producer already holds it.
func (r *Registry) Attach(key, remote, transport string) (*Session, error) {
	target, ok := r.binder.Lookup(key)
	if !ok {
		return nil, ErrUnknownDevice
	}

	sess := &Session{
		ID:        uuid.NewString(),
		Key:       key,
		Remote:    remote,
		Transport: transport,
		StartedAt: time.Now(),
		stream:    target,
	}
	sess.lastPTS.Store(PTSUnset)

	// The broadcast flip happens under the registry lock so a racing
	// Detach of the previous holder cannot reorder against it.
	r.mu.Lock()
	if _, busy := r.sessions[key]; busy {
		r.mu.Unlock()
		return nil, ErrDeviceBusy
	}
	r.sessions[key] = sess
	target.SetBroadcasting(true)
	r.mu.Unlock()

	r.log.Info("producer attached",
		"key", key,
		"session", sess.ID,
		"remote", remote,
		"transport", transport)
	return sess, nil
}

// Detach releases the session's device, reverting it to its test frame.
// Detaching a session that is no longer the device's holder is a no-op.
func (r *Registry) Detach(sess *Session) {
	r.mu.Lock()
	held := r.sessions[sess.Key] == sess
	if held {
		delete(r.sessions, sess.Key)
		sess.stream.SetBroadcasting(false)
	}
	r.mu.Unlock()

	if !held {
		return
	}

	stats := sess.Stats()
	r.log.Info("producer detached",
		"key", sess.Key,
		"session", sess.ID,
		"frames", stats.FramesReceived,
		"bytes", stats.BytesReceived,
		"uptimeMs", stats.UptimeMs)
}

// Session returns the active producer session for key, if any.
func (r *Registry) Session(key string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[key]
	return s, ok
}

// Sessions returns stats for every active session, sorted by device key.
func (r *Registry) Sessions() []SessionStats {
	r.mu.RLock()
	out := make([]SessionStats, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.Stats())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
