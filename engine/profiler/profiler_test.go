package profiler

import (
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-cluster/engine/frame"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func TestTickReportsAtInterval(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	p := NewProfiler(WithClock(clock.now), WithInterval(time.Second))

	for range 9 {
		clock.t = clock.t.Add(100 * time.Millisecond)
		p.Observe(frame.PassKindCull, 2*time.Millisecond)
		p.Observe(frame.PassKindLightBin, 4*time.Millisecond)
		if p.Tick() {
			t.Fatalf("Tick reported before the interval elapsed")
		}
	}
	clock.t = clock.t.Add(100 * time.Millisecond)
	p.Observe(frame.PassKindCull, 6*time.Millisecond)
	if !p.Tick() {
		t.Fatalf("Tick did not report after the interval")
	}

	r := p.Last()
	if r.Frames != 10 || r.FPS != 10 {
		t.Errorf("Frames, FPS = %d, %v; want 10, 10", r.Frames, r.FPS)
	}
	cull := r.Passes[frame.PassKindCull]
	if cull.Count != 10 || cull.Max != 6*time.Millisecond || cull.Mean() != 2400*time.Microsecond {
		t.Errorf("cull stats = %+v (mean %v)", cull, cull.Mean())
	}
	if r.Passes[frame.PassKindLightBin].Count != 9 {
		t.Errorf("light-bin count = %d, want 9", r.Passes[frame.PassKindLightBin].Count)
	}

	clock.t = clock.t.Add(100 * time.Millisecond)
	if p.Tick() {
		t.Errorf("Tick reported right after a report")
	}
}

func TestPassStatsMeanEmpty(t *testing.T) {
	if (PassStats{}).Mean() != 0 {
		t.Errorf("Mean() of empty stats != 0")
	}
}
