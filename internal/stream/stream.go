// Package stream implements the frame-production core of a virtual camera
// device: a paced scheduler that emits the current frame into a bounded
// sample queue, the configuration surface that shapes those frames, and the
// device registry the daemon hangs everything off.
package stream

import (
	"image"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/zsiec/mirage/internal/clock"
	"github.com/zsiec/mirage/internal/queue"
	"github.com/zsiec/mirage/internal/testpattern"
	"github.com/zsiec/mirage/internal/transform"
	"github.com/zsiec/mirage/media"
)

// resyncWindowFrames is how many frame intervals the presentation cursor may
// run ahead of the host clock before the stream declares a discontinuity and
// jumps to host time.
const resyncWindowFrames = 2

// SampleCallback observes every sample the scheduler enqueues. It runs on
// the scheduler goroutine with the stream lock held and must not call back
// into the stream.
type SampleCallback func(deviceKey string, sample *queue.Sample)

// Config carries the constructor inputs for a stream.
type Config struct {
	// Key identifies the owning device in logs and callbacks.
	Key string
	// Log is the parent logger; nil falls back to slog.Default.
	Log *slog.Logger
	// TestImage is shown while no producer is broadcasting. Nil means
	// generated color bars at the active format's geometry.
	TestImage *image.RGBA
	// QueueCapacity bounds the sample queue; non-positive picks the default.
	QueueCapacity int
	// ClockName labels the stream's timing clock.
	ClockName string
}

// Stream is one virtual camera's frame engine. A single mutex guards all
// mutable state; the scheduler goroutine takes it once per tick.
type Stream struct {
	key string
	log *slog.Logger
	clk *clock.Clock
	q   *queue.Queue

	mu           sync.Mutex
	formats      []media.VideoFormat
	format       media.VideoFormat
	rate         media.Fraction
	hMirror      bool
	vMirror      bool
	scaling      transform.Scaling
	aspect       transform.AspectRatio
	broadcasting bool
	running      bool

	testImage *image.RGBA
	testFrame *media.Frame // test image adapted to format + filters
	current   *media.Frame // frame emitted on each tick

	pts      int64
	ptsValid bool
	sequence uint64

	callback SampleCallback

	stopCh chan struct{}
	wg     sync.WaitGroup

	// now is the host clock; replaced in tests to drive ticks directly.
	now func() time.Time

	stats engineStats
}

// New creates a stopped stream. Formats must still be installed with
// SetFormats or SetFormat before Start can succeed.
func New(cfg Config) *Stream {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	clockName := cfg.ClockName
	if clockName == "" {
		clockName = "mirage.stream." + cfg.Key
	}
	return &Stream{
		key:       cfg.Key,
		log:       log.With("component", "stream", "device", cfg.Key),
		clk:       clock.New(clockName, log),
		q:         queue.NewQueue(cfg.QueueCapacity),
		testImage: cfg.TestImage,
		now:       time.Now,
	}
}

// Key returns the owning device key.
func (s *Stream) Key() string {
	return s.key
}

// SetFormats installs the formats the device offers. Geometries are rounded
// to served alignment, and the first entry becomes the active format. An
// empty list leaves the stream untouched.
func (s *Stream) SetFormats(formats []media.VideoFormat) {
	if len(formats) == 0 {
		return
	}

	adjusted := make([]media.VideoFormat, 0, len(formats))
	for _, f := range formats {
		f.Width, f.Height = media.RoundNearest(f.Width, f.Height, 0)
		adjusted = append(adjusted, f)
	}

	s.mu.Lock()
	s.formats = adjusted
	s.setFormatLocked(adjusted[0])
	s.mu.Unlock()

	s.log.Debug("formats installed", "count", len(adjusted), "active", adjusted[0].String())
}

// Formats returns the installed format list.
func (s *Stream) Formats() []media.VideoFormat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.formats)
}

// SetFormat makes the given format active and adopts its first frame rate
// when it lists any.
func (s *Stream) SetFormat(format media.VideoFormat) {
	s.mu.Lock()
	s.setFormatLocked(format)
	s.mu.Unlock()
}

func (s *Stream) setFormatLocked(format media.VideoFormat) {
	if len(format.FrameRates) > 0 {
		s.setFrameRateLocked(format.FrameRates[0])
	}
	s.format = format
}

// SetFrameRate selects the emission rate. Invalid rates are rejected; the
// pacing interval of a running scheduler is fixed until the next Start.
func (s *Stream) SetFrameRate(rate media.Fraction) {
	s.mu.Lock()
	s.setFrameRateLocked(rate)
	s.mu.Unlock()
}

func (s *Stream) setFrameRateLocked(rate media.Fraction) {
	if !rate.Valid() {
		s.log.Warn("ignoring invalid frame rate", "rate", rate.String())
		return
	}
	s.rate = rate
}

// Format returns the active format.
func (s *Stream) Format() media.VideoFormat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format
}

// FrameRate returns the active frame rate.
func (s *Stream) FrameRate() media.Fraction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate
}

// Start adapts the test frame, resets the sample sequence, invalidates the
// presentation cursor, and launches the scheduler. It reports false when the
// stream is already running or when no usable format and frame rate are
// installed; a failed Start leaves nothing running.
func (s *Stream) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return false
	}
	if !s.rearmLocked() {
		s.log.Warn("start failed",
			"format", s.format.String(),
			"rate", s.rate.String())
		return false
	}

	s.stopCh = make(chan struct{})
	s.wg.Add(1)
	go s.run(s.rate.Interval(), s.stopCh)
	s.running = true

	s.log.Info("stream started",
		"format", s.format.String(),
		"rate", s.rate.String(),
		"queueCap", s.q.Cap())
	return true
}

// rearmLocked resets emission state for a fresh run: the adapted test frame
// becomes the current frame, the sequence returns to zero, and the
// presentation cursor is invalidated so the first tick resyncs. Reports
// whether the stream has a servable format, rate, and frame. Called with
// s.mu held.
func (s *Stream) rearmLocked() bool {
	s.updateTestFrameLocked()
	s.current = s.testFrame
	s.sequence = 0
	s.ptsValid = false
	return s.rate.Interval() > 0 && s.current != nil
}

// Stop halts the scheduler and releases the current and adapted test frames.
// No tick runs after Stop returns. Stopping a stopped stream is a no-op;
// queued samples and the broadcast flag survive a stop.
func (s *Stream) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stop := s.stopCh
	s.stopCh = nil
	s.mu.Unlock()

	if stop != nil {
		close(stop)
		s.wg.Wait()
	}

	s.mu.Lock()
	s.current = nil
	s.testFrame = nil
	s.mu.Unlock()

	s.log.Info("stream stopped")
}

// Running reports whether the scheduler is active.
func (s *Stream) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// IngestFrame hands a producer frame to the stream. While running and
// broadcasting, the frame is adapted through the mirror/scale/convert
// pipeline and becomes the current frame; otherwise it is dropped.
func (s *Stream) IngestFrame(frame *media.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.ingestFrames.Add(1)

	if !s.running || !s.broadcasting {
		s.stats.ingestDropped.Add(1)
		return
	}

	adapted, err := transform.Apply(frame, transform.Options{
		HorizontalMirror: s.hMirror,
		VerticalMirror:   s.vMirror,
		Scaling:          s.scaling,
		AspectRatio:      s.aspect,
		Output:           s.format,
	})
	if err != nil {
		s.stats.ingestDropped.Add(1)
		s.log.Warn("dropping ingested frame", "error", err)
		return
	}
	s.current = adapted
}

// SetBroadcasting flips the producer-attached flag. Turning it off swaps the
// adapted test frame back in; setting the current value is a no-op.
func (s *Stream) SetBroadcasting(broadcasting bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.broadcasting == broadcasting {
		return
	}
	s.broadcasting = broadcasting
	if !broadcasting {
		s.current = s.testFrame
	}
	s.log.Info("broadcasting changed", "broadcasting", broadcasting)
}

// Broadcasting reports whether a producer is attached.
func (s *Stream) Broadcasting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.broadcasting
}

// SetMirror sets the mirror axes and re-adapts the test frame. The current
// frame is left alone: a live producer picture picks the new filters up on
// its next frame, and the test picture on the next broadcast drop or start.
func (s *Stream) SetMirror(horizontal, vertical bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hMirror == horizontal && s.vMirror == vertical {
		return
	}
	s.hMirror = horizontal
	s.vMirror = vertical
	s.updateTestFrameLocked()
}

// Mirror returns the horizontal and vertical mirror flags.
func (s *Stream) Mirror() (horizontal, vertical bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hMirror, s.vMirror
}

// SetScaling selects the resampling mode; same-value sets are no-ops.
func (s *Stream) SetScaling(scaling transform.Scaling) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scaling == scaling {
		return
	}
	s.scaling = scaling
	s.updateTestFrameLocked()
}

// Scaling returns the resampling mode.
func (s *Stream) Scaling() transform.Scaling {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scaling
}

// SetAspectRatio selects the fitting policy; same-value sets are no-ops.
func (s *Stream) SetAspectRatio(aspect transform.AspectRatio) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.aspect == aspect {
		return
	}
	s.aspect = aspect
	s.updateTestFrameLocked()
}

// AspectRatio returns the fitting policy.
func (s *Stream) AspectRatio() transform.AspectRatio {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aspect
}

// Samples registers the consumer callback and returns the sample queue it
// should drain. A nil callback deregisters the consumer and returns nil.
func (s *Stream) Samples(cb SampleCallback) *queue.Queue {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.callback = cb
	if cb == nil {
		return nil
	}
	return s.q
}

// CurrentFrame returns a copy of the frame the scheduler would emit next,
// or nil when the stream is stopped.
func (s *Stream) CurrentFrame() *media.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

// ClockSnapshot returns the timing clock's current state.
func (s *Stream) ClockSnapshot() clock.Snapshot {
	return s.clk.Snapshot()
}

// Deck transport operations. The hardware model has no deck, so all of them
// fail the same way.

func (s *Stream) DeckPlay() error { return ErrDeckNotSupported }

func (s *Stream) DeckStop() error { return ErrDeckNotSupported }

func (s *Stream) DeckJog(speed int32) error { return ErrDeckNotSupported }

func (s *Stream) DeckCueTo(frameNumber float64, playOnCue bool) error { return ErrDeckNotSupported }

// updateTestFrameLocked rebuilds the adapted test frame for the active
// format and filters. Called with s.mu held.
func (s *Stream) updateTestFrameLocked() {
	if s.format.Validate() != nil {
		s.testFrame = nil
		return
	}

	img := s.testImage
	if img == nil {
		img = testpattern.Generate(s.format.Width, s.format.Height)
	}

	img = transform.MirrorRGBA(img, s.hMirror, s.vMirror)
	img = transform.ScaleRGBA(img, s.format.Width, s.format.Height, s.scaling, s.aspect)
	frame, err := transform.Encode(img, s.format)
	if err != nil {
		s.log.Error("test frame adaptation failed", "error", err)
		s.testFrame = nil
		return
	}
	s.testFrame = frame
}

// run is the scheduler loop: one tick per frame interval until stopped.
func (s *Stream) run(interval time.Duration, stop <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick emits one sample. The whole body runs under the stream lock.
func (s *Stream) tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.current == nil {
		return
	}

	// backpressure: a full queue drops the tick, not the queue's tail
	if s.q.Fullness() >= 1.0 {
		s.stats.droppedFull.Add(1)
		return
	}

	hostTime := s.now().UnixNano()
	candidate := hostTime

	// a candidate equal to the cursor would duplicate the last timestamp
	if s.ptsValid && candidate == s.pts {
		s.stats.droppedDup.Add(1)
		return
	}

	interval := int64(s.rate.Interval())
	resync := false
	if diff := s.pts - candidate; !s.ptsValid || diff < 0 || diff > resyncWindowFrames*interval {
		s.pts = candidate
		s.ptsValid = true
		resync = true
		s.stats.resyncs.Add(1)
	}

	s.clk.PostTimingEvent(s.pts, hostTime, resync)

	if !s.current.Complete() {
		// nothing emittable at this format; same outcome as a failed
		// buffer allocation
		return
	}

	data := make([]byte, len(s.current.Data))
	copy(data, s.current.Data)

	sample := &queue.Sample{
		Format: s.current.Format,
		Data:   data,
		Timing: queue.SampleTiming{
			Duration:         interval,
			DecodeTime:       s.pts,
			PresentationTime: s.pts,
		},
		Sequence:      s.sequence,
		Discontinuity: resync,
	}

	s.q.Enqueue(sample)
	s.pts += interval
	s.sequence++

	s.stats.framesEmitted.Add(1)
	s.stats.lastPTS.Store(sample.Timing.PresentationTime)

	if s.callback != nil {
		s.callback(s.key, sample)
	}
}
