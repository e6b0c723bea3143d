package profiler

import (
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestReportsAtInterval(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	p := NewProfiler(WithLogger(zap.New(core)), WithInterval(time.Second), WithMemoryStats(false))
	start := p.lastTime

	if p.tick(start.Add(300*time.Millisecond), 10*time.Millisecond) {
		t.Fatal("reported before the interval elapsed")
	}
	p.Drop()
	if p.tick(start.Add(600*time.Millisecond), 30*time.Millisecond) {
		t.Fatal("reported before the interval elapsed")
	}
	if !p.tick(start.Add(time.Second), 20*time.Millisecond) {
		t.Fatal("did not report once the interval elapsed")
	}

	stats := p.Last()
	if stats.FPS != 3 {
		t.Errorf("fps = %v, want 3", stats.FPS)
	}
	if stats.AvgFrame != 20*time.Millisecond || stats.MinFrame != 10*time.Millisecond || stats.MaxFrame != 30*time.Millisecond {
		t.Errorf("frame times = %v/%v/%v", stats.MinFrame, stats.AvgFrame, stats.MaxFrame)
	}
	if stats.Dropped != 1 {
		t.Errorf("dropped = %d, want 1", stats.Dropped)
	}

	entries := logs.FilterMessage("frame stats").All()
	if len(entries) != 1 {
		t.Fatalf("logged %d reports, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["dropped"]; got != int64(1) {
		t.Errorf("dropped field = %v", got)
	}
}

func TestCountersResetAfterReport(t *testing.T) {
	p := NewProfiler(WithInterval(time.Second), WithMemoryStats(false))
	start := p.lastTime
	p.Drop()
	p.tick(start.Add(time.Second), 50*time.Millisecond)

	if !p.tick(start.Add(2*time.Second), 5*time.Millisecond) {
		t.Fatal("second interval did not report")
	}
	stats := p.Last()
	if stats.Dropped != 0 || stats.MaxFrame != 5*time.Millisecond || stats.MinFrame != 5*time.Millisecond {
		t.Errorf("stats carried over: %+v", stats)
	}
}

func TestMemoryStats(t *testing.T) {
	p := NewProfiler(WithInterval(time.Millisecond))
	if !p.tick(p.lastTime.Add(time.Second), time.Millisecond) {
		t.Fatal("did not report")
	}
	if stats := p.Last(); stats.HeapMB <= 0 || stats.SysMB <= 0 {
		t.Errorf("memory stats not read: %+v", stats)
	}
}
