// Package clock tracks the timing events a stream publishes on every emitted
// sample and derives a smoothed rate estimate: how fast presentation time
// advances relative to the host clock. The estimate is what a downstream
// media subsystem would slave its capture clock to.
package clock

import (
	"log/slog"
	"sync"
	"time"
)

const (
	// smoothingEvents is the sliding window of accepted timing samples the
	// rate estimate is computed from.
	smoothingEvents = 100
	// smoothingAverages is the number of window segments averaged together.
	smoothingAverages = 10
	// minSampleInterval coalesces timing events arriving faster than the
	// host-time sampling resolution worth reacting to.
	minSampleInterval = 100 * time.Millisecond
)

type sample struct {
	pts  int64
	host int64
}

// Clock accumulates timing events from one stream. All methods are safe for
// concurrent use.
type Clock struct {
	name string
	log  *slog.Logger

	mu       sync.Mutex
	samples  []sample
	events   uint64
	resyncs  uint64
	lastPTS  int64
	lastHost int64
	rate     float64
}

// New creates a clock named after its stream. A nil logger falls back to
// slog.Default.
func New(name string, log *slog.Logger) *Clock {
	if log == nil {
		log = slog.Default()
	}
	return &Clock{
		name: name,
		log:  log.With("component", "clock", "clock", name),
		rate: 1.0,
	}
}

// Name returns the clock's name.
func (c *Clock) Name() string {
	return c.name
}

// PostTimingEvent records one emitted sample: its presentation time, the
// host time it was produced at, and whether the producer declared a resync.
// A resync discards the accumulated rate window; the old correlation between
// presentation and host time no longer holds.
func (c *Clock) PostTimingEvent(pts, hostTime int64, resync bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.events++
	c.lastPTS = pts
	c.lastHost = hostTime

	if resync {
		c.resyncs++
		c.samples = c.samples[:0]
		c.log.Debug("clock resync", "pts", pts, "hostTime", hostTime)
	}

	if n := len(c.samples); n > 0 && hostTime-c.samples[n-1].host < int64(minSampleInterval) {
		return
	}

	c.samples = append(c.samples, sample{pts: pts, host: hostTime})
	if len(c.samples) > smoothingEvents {
		c.samples = c.samples[len(c.samples)-smoothingEvents:]
	}
	if r, ok := c.estimateRate(); ok {
		c.rate = r
	}
}

// Rate returns the smoothed presentation-over-host rate. 1.0 means
// presentation time tracks the host clock exactly; the value holds at 1.0
// until enough samples accumulate.
func (c *Clock) Rate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rate
}

// estimateRate averages per-segment span rates across the sample window.
// Called with c.mu held.
func (c *Clock) estimateRate() (float64, bool) {
	n := len(c.samples)
	if n < 2 {
		return 0, false
	}

	segment := n / smoothingAverages
	if segment < 2 {
		return spanRate(c.samples)
	}

	var sum float64
	var count int
	for i := 0; i < smoothingAverages; i++ {
		start := i * segment
		end := start + segment
		if i == smoothingAverages-1 {
			end = n
		}
		if r, ok := spanRate(c.samples[start:end]); ok {
			sum += r
			count++
		}
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}

func spanRate(s []sample) (float64, bool) {
	hostSpan := s[len(s)-1].host - s[0].host
	if hostSpan <= 0 {
		return 0, false
	}
	ptsSpan := s[len(s)-1].pts - s[0].pts
	return float64(ptsSpan) / float64(hostSpan), true
}

// Snapshot is a point-in-time copy of the clock state for the control API.
type Snapshot struct {
	Name         string  `json:"name"`
	LastPTS      int64   `json:"lastPts"`
	LastHostTime int64   `json:"lastHostTime"`
	Events       uint64  `json:"events"`
	Resyncs      uint64  `json:"resyncs"`
	Rate         float64 `json:"rate"`
}

// Snapshot returns the current clock state.
func (c *Clock) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Name:         c.name,
		LastPTS:      c.lastPTS,
		LastHostTime: c.lastHost,
		Events:       c.events,
		Resyncs:      c.resyncs,
		Rate:         c.rate,
	}
}
