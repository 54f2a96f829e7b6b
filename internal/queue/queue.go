// Package queue implements the bounded sample queue sitting between a
// stream's scheduler and its consumer. The scheduler checks Fullness before
// producing, so a full queue exerts backpressure by making the scheduler drop
// ticks instead of growing the queue.
package queue

import (
	"sync"

	"github.com/zsiec/mirage/media"
)

// SampleTiming carries the clock fields attached to one emitted sample.
// All values are nanoseconds.
type SampleTiming struct {
	Duration         int64 `json:"duration"`
	DecodeTime       int64 `json:"dts"`
	PresentationTime int64 `json:"pts"`
}

// Sample is one emitted frame plus its timing, sequence number, and
// discontinuity marker.
type Sample struct {
	Format        media.VideoFormat
	Data          []byte
	Timing        SampleTiming
	Sequence      uint64
	Discontinuity bool
}

// DefaultCapacity is the queue depth used when a caller does not choose one:
// one second of samples at 30 fps.
const DefaultCapacity = 30

// Queue is a fixed-capacity FIFO of samples. All methods are safe for
// concurrent use.
type Queue struct {
	mu       sync.Mutex
	samples  []*Sample
	capacity int
}

// NewQueue creates a queue holding at most capacity samples. Non-positive
// capacities fall back to DefaultCapacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{
		samples:  make([]*Sample, 0, capacity),
		capacity: capacity,
	}
}

// Enqueue appends a sample. The producer is expected to consult Fullness
// first; if it did not and the queue is already full, the oldest sample is
// displaced so the queue never exceeds its capacity.
func (q *Queue) Enqueue(s *Sample) {
	if s == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.samples) >= q.capacity {
		q.samples = q.samples[1:]
	}
	q.samples = append(q.samples, s)
}

// Dequeue removes and returns the oldest sample, or (nil, false) when empty.
func (q *Queue) Dequeue() (*Sample, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.samples) == 0 {
		return nil, false
	}
	s := q.samples[0]
	q.samples[0] = nil
	q.samples = q.samples[1:]
	return s, true
}

// Fullness returns the occupancy ratio in [0, 1].
func (q *Queue) Fullness() float64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return float64(len(q.samples)) / float64(q.capacity)
}

// Len returns the number of queued samples.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.samples)
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return q.capacity
}

// Clear drops all queued samples.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.samples {
		q.samples[i] = nil
	}
	q.samples = q.samples[:0]
}
