package profiler

import (
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-shader/common"
)

// Sample aggregates the compile timings recorded under one label.
type Sample struct {
	Count    int
	Failures int
	Total    time.Duration
	Max      time.Duration
}

// Average returns the mean duration of the recorded compiles, or zero if there are none.
func (s Sample) Average() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// Profiler tracks per-shader compile timings and memory statistics for performance monitoring.
// Safe for concurrent use.
type Profiler struct {
	mu      sync.Mutex
	samples map[string]*Sample
	started time.Time

	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	logger *slog.Logger
}

// NewProfiler creates a new, empty Profiler. A nil logger falls back to common.Logger.
//
// Parameters:
//   - logger: where Report writes its statistics
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(logger *slog.Logger) *Profiler {
	if logger == nil {
		logger = common.Logger()
	}
	return &Profiler{
		samples: make(map[string]*Sample),
		started: time.Now(),
		logger:  logger,
	}
}

// Record adds one compile of label that took d.
//
// Parameters:
//   - label: the shader name or variant label
//   - d: the compile duration
//   - ok: false if the compile failed
func (p *Profiler) Record(label string, d time.Duration, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, found := p.samples[label]
	if !found {
		s = &Sample{}
		p.samples[label] = s
	}
	s.Count++
	s.Total += d
	s.Max = max(s.Max, d)
	if !ok {
		s.Failures++
	}
}

// Snapshot returns a copy of every sample keyed by label.
//
// Returns:
//   - map[string]Sample: the recorded samples
func (p *Profiler) Snapshot() map[string]Sample {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]Sample, len(p.samples))
	for label, s := range p.samples {
		out[label] = *s
	}
	return out
}

// Report logs one line per label in ascending order, followed by a memory summary covering
// the time since the previous report.
// Statistics include: compile count, failures, average and max duration, heap usage,
// allocation rate, GC count and total memory.
func (p *Profiler) Report() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, label := range common.SortedKeys(p.samples) {
		s := p.samples[label]
		p.logger.Info("compile profile",
			"shader", label,
			"count", s.Count,
			"failures", s.Failures,
			"avg", s.Average(),
			"max", s.Max,
		)
	}

	now := time.Now()
	elapsed := now.Sub(p.started)
	runtime.ReadMemStats(&p.memStats)

	// Alloc is live heap, TotalAlloc only grows, Sys is the process footprint
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	sysMB := float64(p.memStats.Sys) / 1024 / 1024
	allocRateMB := 0.0
	if elapsed > 0 {
		allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
		allocRateMB = float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()
	}

	p.logger.Info("memory profile",
		"heap_mb", allocMB,
		"alloc_rate_mb_s", allocRateMB,
		"gc", p.memStats.NumGC-p.lastGCCount,
		"sys_mb", sysMB,
	)

	p.started = now
	p.lastGCCount = p.memStats.NumGC
	p.lastTotalAlloc = p.memStats.TotalAlloc
}

// Reset discards every recorded sample.
func (p *Profiler) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	clear(p.samples)
}
