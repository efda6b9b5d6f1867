// Package profiler collects frame statistics into Prometheus collectors on a private registry and
// periodically logs a summary line with frame rate and memory usage.
package profiler

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Carmen-Shannon/oxy-surface/engine/pump"
)

const namespace = "surface"

// Profiler tracks frame rate, kernel timing, ownership transfers and memory statistics.
type Profiler struct {
	log      *zap.Logger
	now      func() time.Time
	registry *prometheus.Registry

	frameSeconds  prometheus.Histogram
	kernelSeconds prometheus.Histogram
	ticks         prometheus.Counter
	dispatches    prometheus.Counter
	transitions   prometheus.Counter
	animationTime prometheus.Gauge

	frameCount      int
	lastTime        time.Time
	updateInterval  time.Duration
	memStats        runtime.MemStats
	lastGCCount     uint32
	lastTotalAlloc  uint64
	lastTransitions uint64
}

// NewProfiler creates a Profiler with its collectors registered on a fresh registry.
// The summary interval defaults to 1 second.
//
// Parameters:
//   - options: functional options to configure the profiler
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		log:            zap.NewNop(),
		now:            time.Now,
		registry:       prometheus.NewRegistry(),
		updateInterval: time.Second,
		frameSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_seconds",
			Help:      "Time spent rendering one tick.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		kernelSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kernel_seconds",
			Help:      "Host-measured duration of one kernel dispatch.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 12),
		}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Completed frame ticks.",
		}),
		dispatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kernel_dispatches_total",
			Help:      "Kernel dispatches enqueued.",
		}),
		transitions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ownership_transitions_total",
			Help:      "Completed ownership transfers of the shared buffer.",
		}),
		animationTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "animation_time",
			Help:      "Animation time of the last rendered frame.",
		}),
	}
	for _, option := range options {
		option(p)
	}
	p.registry.MustRegister(p.frameSeconds, p.kernelSeconds, p.ticks, p.dispatches, p.transitions, p.animationTime)
	p.lastTime = p.now()
	return p
}

// Registry returns the registry the collectors are registered on.
func (p *Profiler) Registry() *prometheus.Registry { return p.registry }

// RecordDispatch counts one kernel dispatch. A zero duration means the queue reported no timing.
func (p *Profiler) RecordDispatch(d time.Duration) {
	p.dispatches.Inc()
	if d > 0 {
		p.kernelSeconds.Observe(d.Seconds())
	}
}

// SetTransitions records the running total of ownership transfers.
func (p *Profiler) SetTransitions(total uint64) {
	if total > p.lastTransitions {
		p.transitions.Add(float64(total - p.lastTransitions))
		p.lastTransitions = total
	}
}

// Tick should be called once per completed frame. It logs a summary when the update interval has
// elapsed: FPS, heap usage, allocation rate, GC count and pause times, total memory.
//
// Parameters:
//   - stats: the stats of the tick that just completed
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick(stats pump.TickStats) bool {
	p.ticks.Inc()
	p.frameSeconds.Observe(stats.Elapsed.Seconds())
	p.animationTime.Set(float64(stats.T))

	p.frameCount++
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	fps := float64(p.frameCount) / elapsed.Seconds()

	runtime.ReadMemStats(&p.memStats)
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	sysMB := float64(p.memStats.Sys) / 1024 / 1024
	allocRateMB := float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds()

	// PauseNs is a circular buffer of the last 256 pauses
	gcCount := p.memStats.NumGC
	var lastPause, maxPause time.Duration
	if gcCount > 0 {
		lastPause = time.Duration(p.memStats.PauseNs[(gcCount-1)%256])
		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			maxPause = max(maxPause, time.Duration(p.memStats.PauseNs[i%256]))
		}
	}

	p.log.Info("frame stats",
		zap.Float64("fps", fps),
		zap.Float32("t", stats.T),
		zap.Duration("last_frame", stats.Elapsed),
		zap.Uint64("transitions", p.lastTransitions),
		zap.Float64("heap_mb", allocMB),
		zap.Float64("alloc_rate_mb_s", allocRateMB),
		zap.Uint32("gc", gcCount),
		zap.Duration("gc_last_pause", lastPause),
		zap.Duration("gc_max_pause", maxPause),
		zap.Float64("sys_mb", sysMB),
	)

	p.frameCount = 0
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}
