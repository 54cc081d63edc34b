// Package profiler reports frame rate, per-pass recording time and memory statistics at an interval.
package profiler

import (
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/Carmen-Shannon/oxy-cluster/engine/frame"
)

// PassStats accumulates the recording time of one pass kind over a report interval.
type PassStats struct {
	Count int
	Total time.Duration
	Max   time.Duration
}

// Mean returns the average recording time, or 0 when the pass never ran.
func (s PassStats) Mean() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// Report is what the profiler logged at the end of an interval.
type Report struct {
	FPS         float64
	Frames      int
	Passes      map[frame.PassKind]PassStats
	HeapMB      float64
	AllocRateMB float64
	GCCount     uint32
	SysMB       float64
}

// Profiler tracks frame rate, per-pass timings and memory statistics for performance monitoring.
// Outputs stats to the log at a configurable interval.
type Profiler struct {
	mu             sync.Mutex
	frameCount     int
	passes         map[frame.PassKind]PassStats
	now            func() time.Time
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastTotalAlloc uint64
	last           Report
	log            *slog.Logger
}

// NewProfiler creates a new Profiler.
// Update interval defaults to 1 second.
//
// Parameters:
//   - options: ProfilerOption values
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerOption) *Profiler {
	p := &Profiler{
		passes:         make(map[frame.PassKind]PassStats),
		now:            time.Now,
		updateInterval: time.Second,
		log:            common.ComponentLogger("profiler"),
	}
	for _, option := range options {
		option(p)
	}
	p.lastTime = p.now()
	return p
}

// Observe records the recording time of one pass. It has the signature of a frame.Scheduler observer.
func (p *Profiler) Observe(kind frame.PassKind, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.passes[kind]
	s.Count++
	s.Total += d
	s.Max = max(s.Max, d)
	p.passes[kind] = s
}

// Last returns the most recent report.
func (p *Profiler) Last() Report {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Tick should be called once per frame to track frame timing.
// Logs performance statistics when the update interval has elapsed.
// Statistics include: FPS, per-pass mean and max recording time, heap usage, allocation rate,
// GC count, total memory.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.frameCount++
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	runtime.ReadMemStats(&p.memStats)
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	r := Report{
		FPS:         float64(p.frameCount) / elapsed.Seconds(),
		Frames:      p.frameCount,
		Passes:      p.passes,
		HeapMB:      float64(p.memStats.Alloc) / 1024 / 1024,
		AllocRateMB: float64(allocDelta) / 1024 / 1024 / elapsed.Seconds(),
		GCCount:     p.memStats.NumGC,
		SysMB:       float64(p.memStats.Sys) / 1024 / 1024,
	}

	attrs := []any{
		slog.Float64("fps", r.FPS),
		slog.Float64("heap_mb", r.HeapMB),
		slog.Float64("alloc_rate_mb", r.AllocRateMB),
		slog.Uint64("gc", uint64(r.GCCount)),
		slog.Float64("sys_mb", r.SysMB),
	}
	for kind, s := range r.Passes {
		attrs = append(attrs, slog.Group(kind.String(),
			slog.Duration("mean", s.Mean()),
			slog.Duration("max", s.Max),
		))
	}
	p.log.Info("frame stats", attrs...)

	p.last = r
	p.frameCount = 0
	p.passes = make(map[frame.PassKind]PassStats)
	p.lastTime = currentTime
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}
