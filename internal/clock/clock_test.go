package clock

import (
	"testing"
	"time"
)

func TestClockCountsEvents(t *testing.T) {
	c := New("test", nil)
	for i := int64(0); i < 5; i++ {
		c.PostTimingEvent(i*1e9, i*1e9, false)
	}
	snap := c.Snapshot()
	if snap.Events != 5 {
		t.Errorf("Events = %d, want 5", snap.Events)
	}
	if snap.Resyncs != 0 {
		t.Errorf("Resyncs = %d, want 0", snap.Resyncs)
	}
	if snap.LastPTS != 4e9 {
		t.Errorf("LastPTS = %d, want %d", snap.LastPTS, int64(4e9))
	}
	if snap.Name != "test" {
		t.Errorf("Name = %q, want %q", snap.Name, "test")
	}
}

func TestClockCountsResyncs(t *testing.T) {
	c := New("test", nil)
	c.PostTimingEvent(0, 0, true)
	c.PostTimingEvent(1e9, 1e9, false)
	c.PostTimingEvent(0, 2e9, true)
	snap := c.Snapshot()
	if snap.Resyncs != 2 {
		t.Errorf("Resyncs = %d, want 2", snap.Resyncs)
	}
	if snap.Events != 3 {
		t.Errorf("Events = %d, want 3", snap.Events)
	}
}

func TestClockRateTracksTimeline(t *testing.T) {
	c := New("test", nil)
	// presentation time advancing at exactly host speed, samples 200ms apart
	step := int64(200 * time.Millisecond)
	for i := int64(0); i < 50; i++ {
		c.PostTimingEvent(i*step, i*step, false)
	}
	if got := c.Rate(); got < 0.999 || got > 1.001 {
		t.Errorf("Rate() = %v, want ~1.0", got)
	}
}

func TestClockRateHalfSpeed(t *testing.T) {
	c := New("test", nil)
	// presentation time advancing at half host speed
	step := int64(200 * time.Millisecond)
	for i := int64(0); i < 50; i++ {
		c.PostTimingEvent(i*step/2, i*step, false)
	}
	if got := c.Rate(); got < 0.499 || got > 0.501 {
		t.Errorf("Rate() = %v, want ~0.5", got)
	}
}

func TestClockCoalescesFastSamples(t *testing.T) {
	c := New("test", nil)
	// whole burst spans 45ms of host time, under the 100ms sampling floor:
	// only the first sample may enter the window, so the 3x pts slope of the
	// burst must not reach the rate estimate
	step := int64(5 * time.Millisecond)
	for i := int64(0); i < 10; i++ {
		c.PostTimingEvent(3*i*step, i*step, false)
	}
	snap := c.Snapshot()
	if snap.Events != 10 {
		t.Errorf("Events = %d, want 10 (coalescing must not drop event counts)", snap.Events)
	}
	if snap.Rate != 1.0 {
		t.Errorf("Rate = %v, want untouched default 1.0", snap.Rate)
	}
}

func TestClockResyncResetsWindow(t *testing.T) {
	c := New("test", nil)
	step := int64(200 * time.Millisecond)
	for i := int64(0); i < 20; i++ {
		c.PostTimingEvent(i*step, i*step, false)
	}

	// jam to a new timeline running at double speed; after the resync the
	// estimate must come from post-resync samples alone
	base := int64(100e9)
	c.PostTimingEvent(base, 20*step, true)
	for i := int64(1); i < 20; i++ {
		c.PostTimingEvent(base+2*i*step, (20+i)*step, false)
	}
	if got := c.Rate(); got < 1.999 || got > 2.001 {
		t.Errorf("Rate() after resync = %v, want ~2.0", got)
	}
}
