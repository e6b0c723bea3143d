package profiler

import (
	"runtime"
	"time"

	"go.uber.org/zap"
)

// Stats is one reporting interval's worth of measurements.
type Stats struct {
	FPS float64
	// Frame times of the frames rendered during the interval.
	AvgFrame time.Duration
	MinFrame time.Duration
	MaxFrame time.Duration
	// Dropped counts ticks where no frame was available, such as during a swapchain recreation.
	Dropped int

	HeapMB      float64
	AllocRateMB float64
	SysMB       float64
	GCCount     uint32
	// MaxPause is the longest GC pause since the previous report.
	MaxPause time.Duration
}

// Profiler tracks frame rate, frame time and memory statistics for performance monitoring.
// Reports through its logger at a configurable interval.
type Profiler struct {
	logger         *zap.Logger
	updateInterval time.Duration
	readMemory     bool

	frameCount int
	dropped    int
	frameSum   time.Duration
	frameMin   time.Duration
	frameMax   time.Duration
	lastTime   time.Time

	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	last Stats
}

// NewProfiler creates a new Profiler. The update interval defaults to 1 second.
//
// Parameters:
//   - options: functional options to configure the profiler
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		logger:         zap.NewNop(),
		updateInterval: time.Second,
		readMemory:     true,
		lastTime:       time.Now(),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Tick records one rendered frame. Reports when the update interval has elapsed.
//
// Parameters:
//   - frameTime: how long the frame took from StartRender to EndRender
//
// Returns:
//   - bool: true if stats were reported this tick
func (p *Profiler) Tick(frameTime time.Duration) bool {
	return p.tick(time.Now(), frameTime)
}

// Drop records a tick that produced no frame.
func (p *Profiler) Drop() {
	p.dropped++
}

// Last returns the most recently reported stats.
func (p *Profiler) Last() Stats {
	return p.last
}

func (p *Profiler) tick(now time.Time, frameTime time.Duration) bool {
	p.frameCount++
	p.frameSum += frameTime
	if p.frameCount == 1 || frameTime < p.frameMin {
		p.frameMin = frameTime
	}
	if frameTime > p.frameMax {
		p.frameMax = frameTime
	}

	elapsed := now.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	stats := Stats{
		FPS:      float64(p.frameCount) / elapsed.Seconds(),
		AvgFrame: p.frameSum / time.Duration(p.frameCount),
		MinFrame: p.frameMin,
		MaxFrame: p.frameMax,
		Dropped:  p.dropped,
	}
	if p.readMemory {
		p.readMemStats(&stats, elapsed)
	}
	p.last = stats

	p.logger.Info("frame stats",
		zap.Float64("fps", stats.FPS),
		zap.Duration("avg_frame", stats.AvgFrame),
		zap.Duration("min_frame", stats.MinFrame),
		zap.Duration("max_frame", stats.MaxFrame),
		zap.Int("dropped", stats.Dropped),
		zap.Float64("heap_mb", stats.HeapMB),
		zap.Float64("alloc_rate_mb", stats.AllocRateMB),
		zap.Uint32("gc", stats.GCCount),
		zap.Duration("gc_max_pause", stats.MaxPause),
		zap.Float64("sys_mb", stats.SysMB),
	)

	p.frameCount = 0
	p.dropped = 0
	p.frameSum = 0
	p.frameMin = 0
	p.frameMax = 0
	p.lastTime = now
	return true
}

func (p *Profiler) readMemStats(stats *Stats, elapsed time.Duration) {
	runtime.ReadMemStats(&p.memStats)
	// Alloc is live heap; TotalAlloc only grows and tracks churn; Sys is the process footprint.
	stats.HeapMB = float64(p.memStats.Alloc) / 1024 / 1024
	stats.SysMB = float64(p.memStats.Sys) / 1024 / 1024
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	stats.AllocRateMB = float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	gcCount := p.memStats.NumGC
	stats.GCCount = gcCount
	// PauseNs is a circular buffer of the last 256 pauses.
	start := p.lastGCCount
	if gcCount-start > 256 {
		start = gcCount - 256
	}
	var maxPause uint64
	for i := start; i < gcCount; i++ {
		maxPause = max(maxPause, p.memStats.PauseNs[i%256])
	}
	stats.MaxPause = time.Duration(maxPause)

	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
}
