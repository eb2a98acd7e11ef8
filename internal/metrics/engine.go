// Package metrics records per-write latencies with HDR histograms.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Engine aggregates write latencies for one scenario run.
//
// # Thread Safety
//
// Engine is safe for concurrent use. Counters are atomics, histograms are
// guarded by a mutex because RecordValue is not thread-safe.
type Engine struct {
	// Range: 1 microsecond to 1 hour, 3 significant figures
	latencyHist   *hdrhistogram.Histogram
	latencyHistMu sync.Mutex

	// Per-worker histograms, keyed by worker label.
	workerHists   map[string]*hdrhistogram.Histogram
	workerHistsMu sync.RWMutex

	writes  atomic.Int64
	failed  atomic.Int64
	bytes   atomic.Int64
	workers atomic.Int32

	config EngineConfig
}

// EngineConfig contains configuration for the metrics engine.
type EngineConfig struct {
	// HistogramMin is the minimum recordable value in microseconds (default: 1)
	HistogramMin int64

	// HistogramMax is the maximum recordable value in microseconds (default: 3600000000 = 1 hour)
	HistogramMax int64

	// HistogramSigFigs is the number of significant figures (default: 3)
	HistogramSigFigs int
}

// DefaultEngineConfig returns the default configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		HistogramMin:     1,
		HistogramMax:     3600000000,
		HistogramSigFigs: 3,
	}
}

// NewEngine creates a metrics engine with the default configuration.
func NewEngine() *Engine {
	config := DefaultEngineConfig()
	return &Engine{
		latencyHist: hdrhistogram.New(config.HistogramMin, config.HistogramMax, config.HistogramSigFigs),
		workerHists: make(map[string]*hdrhistogram.Histogram),
		config:      config,
	}
}

// RecordWrite records the latency of one write (including its commit, when
// the mode commits per item). worker may be empty to skip the per-worker
// breakdown.
func (e *Engine) RecordWrite(duration time.Duration, worker string, success bool, bytes int64) {
	micros := duration.Microseconds()
	if micros < e.config.HistogramMin {
		micros = e.config.HistogramMin
	}
	if micros > e.config.HistogramMax {
		micros = e.config.HistogramMax
	}

	e.latencyHistMu.Lock()
	e.latencyHist.RecordValue(micros)
	e.latencyHistMu.Unlock()

	if worker != "" {
		e.recordWorkerHistogram(worker, micros)
	}

	e.writes.Add(1)
	e.bytes.Add(bytes)
	if !success {
		e.failed.Add(1)
	}
}

func (e *Engine) recordWorkerHistogram(worker string, micros int64) {
	e.workerHistsMu.Lock()
	defer e.workerHistsMu.Unlock()

	hist, ok := e.workerHists[worker]
	if !ok {
		hist = hdrhistogram.New(e.config.HistogramMin, e.config.HistogramMax, e.config.HistogramSigFigs)
		e.workerHists[worker] = hist
	}
	hist.RecordValue(micros)
}

// WorkerStarted and WorkerFinished track how many workers are writing.
func (e *Engine) WorkerStarted() { e.workers.Add(1) }

func (e *Engine) WorkerFinished() { e.workers.Add(-1) }

// ActiveWorkers returns the number of workers currently writing.
func (e *Engine) ActiveWorkers() int {
	return int(e.workers.Load())
}

// Latency returns the aggregate latency statistics.
func (e *Engine) Latency() LatencyStats {
	e.latencyHistMu.Lock()
	defer e.latencyHistMu.Unlock()
	return statsOf(e.latencyHist)
}

// WorkerLatency returns latency statistics per worker label.
func (e *Engine) WorkerLatency() map[string]LatencyStats {
	e.workerHistsMu.RLock()
	defer e.workerHistsMu.RUnlock()

	result := make(map[string]LatencyStats, len(e.workerHists))
	for name, hist := range e.workerHists {
		result[name] = statsOf(hist)
	}
	return result
}

// Snapshot returns a point-in-time view of all counters.
func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		Writes:        e.writes.Load(),
		FailedWrites:  e.failed.Load(),
		Bytes:         e.bytes.Load(),
		ActiveWorkers: e.ActiveWorkers(),
		Latency:       e.Latency(),
	}
}

// Reset clears every histogram and counter.
func (e *Engine) Reset() {
	e.latencyHistMu.Lock()
	e.latencyHist.Reset()
	e.latencyHistMu.Unlock()

	e.workerHistsMu.Lock()
	e.workerHists = make(map[string]*hdrhistogram.Histogram)
	e.workerHistsMu.Unlock()

	e.writes.Store(0)
	e.failed.Store(0)
	e.bytes.Store(0)
	e.workers.Store(0)
}

func statsOf(hist *hdrhistogram.Histogram) LatencyStats {
	return LatencyStats{
		Min:    time.Duration(hist.Min()) * time.Microsecond,
		Max:    time.Duration(hist.Max()) * time.Microsecond,
		Mean:   time.Duration(hist.Mean()) * time.Microsecond,
		StdDev: time.Duration(hist.StdDev()) * time.Microsecond,
		P50:    time.Duration(hist.ValueAtQuantile(50)) * time.Microsecond,
		P90:    time.Duration(hist.ValueAtQuantile(90)) * time.Microsecond,
		P95:    time.Duration(hist.ValueAtQuantile(95)) * time.Microsecond,
		P99:    time.Duration(hist.ValueAtQuantile(99)) * time.Microsecond,
		Count:  hist.TotalCount(),
	}
}

// Snapshot contains a point-in-time view of the engine.
type Snapshot struct {
	Writes        int64        `json:"writes"`
	FailedWrites  int64        `json:"failedWrites"`
	Bytes         int64        `json:"bytes"`
	ActiveWorkers int          `json:"activeWorkers"`
	Latency       LatencyStats `json:"latency"`
}

// LatencyStats contains latency statistics.
type LatencyStats struct {
	Min    time.Duration `json:"min"`
	Max    time.Duration `json:"max"`
	Mean   time.Duration `json:"mean"`
	StdDev time.Duration `json:"stdDev"`
	P50    time.Duration `json:"p50"`
	P90    time.Duration `json:"p90"`
	P95    time.Duration `json:"p95"`
	P99    time.Duration `json:"p99"`
	Count  int64         `json:"count"`
}
