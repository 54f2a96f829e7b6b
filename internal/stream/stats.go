package stream

import "sync/atomic"

// engineStats are the stream's hot-path counters. Atomics keep the Stats
// snapshot lock-free from API handlers while the scheduler holds the stream
// lock.
type engineStats struct {
	framesEmitted atomic.Uint64
	droppedFull   atomic.Uint64
	droppedDup    atomic.Uint64
	resyncs       atomic.Uint64
	ingestFrames  atomic.Uint64
	ingestDropped atomic.Uint64
	lastPTS       atomic.Int64
}

// Stats is a point-in-time view of a stream's counters for the control API.
type Stats struct {
	Running       bool    `json:"running"`
	Broadcasting  bool    `json:"broadcasting"`
	FramesEmitted uint64  `json:"framesEmitted"`
	DroppedFull   uint64  `json:"droppedFull"`
	DroppedDup    uint64  `json:"droppedDup"`
	Resyncs       uint64  `json:"resyncs"`
	IngestFrames  uint64  `json:"ingestFrames"`
	IngestDropped uint64  `json:"ingestDropped"`
	LastPTS       int64   `json:"lastPts"`
	QueueLen      int     `json:"queueLen"`
	QueueCap      int     `json:"queueCap"`
	QueueFullness float64 `json:"queueFullness"`
}

// Stats returns the current counters.
func (s *Stream) Stats() Stats {
	s.mu.Lock()
	running, broadcasting := s.running, s.broadcasting
	s.mu.Unlock()

	return Stats{
		Running:       running,
		Broadcasting:  broadcasting,
		FramesEmitted: s.stats.framesEmitted.Load(),
		DroppedFull:   s.stats.droppedFull.Load(),
		DroppedDup:    s.stats.droppedDup.Load(),
		Resyncs:       s.stats.resyncs.Load(),
		IngestFrames:  s.stats.ingestFrames.Load(),
		IngestDropped: s.stats.ingestDropped.Load(),
		LastPTS:       s.stats.lastPTS.Load(),
		QueueLen:      s.q.Len(),
		QueueCap:      s.q.Cap(),
		QueueFullness: s.q.Fullness(),
	}
}
