// Package profiler - lightweight runtime and latency profiling for the
// detection API.
package profiler

import (
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ProfilingOptions configures the runtime profiler.
type ProfilingOptions struct {
	// ReportInterval is how often a status report is logged.
	ReportInterval time.Duration
	// Logger receives the periodic reports.
	Logger *zap.Logger
}

// operationStats accumulates timing for one named operation.
type operationStats struct {
	count int64
	total time.Duration
	max   time.Duration
}

// RuntimeProfiler tracks per-operation latencies and process-level
// runtime metrics, reporting both periodically through the logger.
type RuntimeProfiler struct {
	mu      sync.Mutex
	opts    ProfilingOptions
	ops     map[string]*operationStats
	stop    chan struct{}
	stopped sync.Once
}

// NewRuntimeProfiler creates a profiler. Start must be called to begin
// periodic reporting.
func NewRuntimeProfiler(opts ProfilingOptions) *RuntimeProfiler {
	if opts.ReportInterval <= 0 {
		opts.ReportInterval = 30 * time.Second
	}
	return &RuntimeProfiler{
		opts: opts,
		ops:  make(map[string]*operationStats),
		stop: make(chan struct{}),
	}
}

// Start launches the periodic report loop.
func (rp *RuntimeProfiler) Start() {
	go rp.reportLoop()
}

// Stop terminates the report loop. Safe to call more than once.
func (rp *RuntimeProfiler) Stop() {
	rp.stopped.Do(func() {
		close(rp.stop)
	})
}

// StartOperation begins timing a named operation and returns the
// function that records its completion.
//
// Arguments:
//   - name: The operation name, e.g. an endpoint path.
//
// Returns:
//   - A function to call when the operation finishes.
func (rp *RuntimeProfiler) StartOperation(name string) func() {
	start := time.Now()
	return func() {
		rp.record(name, time.Since(start))
	}
}

func (rp *RuntimeProfiler) record(name string, duration time.Duration) {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	stats, ok := rp.ops[name]
	if !ok {
		stats = &operationStats{}
		rp.ops[name] = stats
	}
	stats.count++
	stats.total += duration
	if duration > stats.max {
		stats.max = duration
	}
}

func (rp *RuntimeProfiler) reportLoop() {
	ticker := time.NewTicker(rp.opts.ReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rp.stop:
			return
		case <-ticker.C:
			rp.emitStatusReport()
		}
	}
}

// emitStatusReport logs one snapshot of operation latencies and process
// runtime metrics, then resets the per-interval operation counters.
func (rp *RuntimeProfiler) emitStatusReport() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	rp.mu.Lock()
	fields := []zap.Field{
		zap.Float64("heap_alloc_mb", float64(m.HeapAlloc)/1024/1024),
		zap.Int("goroutines", runtime.NumGoroutine()),
		zap.Uint32("gc_cycles", m.NumGC),
	}
	for name, stats := range rp.ops {
		if stats.count == 0 {
			continue
		}
		avg := stats.total / time.Duration(stats.count)
		fields = append(fields,
			zap.Int64(name+"_count", stats.count),
			zap.Duration(name+"_avg", avg),
			zap.Duration(name+"_max", stats.max),
		)
	}
	rp.ops = make(map[string]*operationStats)
	rp.mu.Unlock()

	rp.opts.Logger.Info("runtime profile", fields...)
}
