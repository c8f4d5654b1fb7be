package monitoring

import (
	"context"
	"runtime"
	"time"
)

// MemoryStats is a point-in-time snapshot of the Go runtime
type MemoryStats struct {
	HeapAlloc    uint64    `json:"heap_alloc_bytes"`
	HeapSys      uint64    `json:"heap_sys_bytes"`
	HeapObjects  uint64    `json:"heap_objects"`
	Sys          uint64    `json:"sys_bytes"`
	NumGC        uint32    `json:"num_gc"`
	PauseTotalNs uint64    `json:"gc_pause_total_ns"`
	NumGoroutine int       `json:"num_goroutine"`
	Timestamp    time.Time `json:"timestamp"`
}

// HeapUsagePercent is HeapAlloc relative to HeapSys.
func (s MemoryStats) HeapUsagePercent() float64 {
	if s.HeapSys == 0 {
		return 0
	}
	return float64(s.HeapAlloc) / float64(s.HeapSys) * 100
}

// ReadMemoryStats samples the runtime
func ReadMemoryStats() MemoryStats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return MemoryStats{
		HeapAlloc:    memStats.HeapAlloc,
		HeapSys:      memStats.HeapSys,
		HeapObjects:  memStats.HeapObjects,
		Sys:          memStats.Sys,
		NumGC:        memStats.NumGC,
		PauseTotalNs: memStats.PauseTotalNs,
		NumGoroutine: runtime.NumGoroutine(),
		Timestamp:    time.Now(),
	}
}

// CollectMemoryStats copies a runtime sample into metrics every interval
// until ctx is done.
func CollectMemoryStats(ctx context.Context, metrics *Metrics, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	record := func() {
		s := ReadMemoryStats()
		metrics.RecordGCMetrics(int64(s.NumGC), int64(s.PauseTotalNs), int64(s.HeapAlloc), int64(s.HeapSys))
	}

	record()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			record()
		}
	}
}
