// Package diagnostics samples process and host resource usage for the
// one-shot snapshot logged when a Connection gives up reconnecting.
// Adapted from internal/metrics/system.go's SystemMetrics: the gopsutil CPU
// sampling survives, the scheduler-latency CPUTracker heuristic does not
// (nothing in this module needs a second, cruder CPU proxy).
package diagnostics

import (
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
)

// Snapshot is a point-in-time resource reading.
type Snapshot struct {
	CPUPercent   float64
	HeapAllocMB  float64
	HeapSysMB    float64
	NumGoroutine int
	NumGC        uint32
}

// Capture samples host CPU over a short window and the current process's
// memory stats. The CPU sample blocks for window; callers invoke this only
// from a diagnostic path (reconnect-exhausted), never the hot request path.
func Capture(window time.Duration) Snapshot {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	snap := Snapshot{
		HeapAllocMB:  float64(mem.HeapAlloc) / 1024 / 1024,
		HeapSysMB:    float64(mem.HeapSys) / 1024 / 1024,
		NumGoroutine: runtime.NumGoroutine(),
		NumGC:        mem.NumGC,
	}

	if window <= 0 {
		window = 200 * time.Millisecond
	}
	if percents, err := cpu.Percent(window, false); err == nil && len(percents) > 0 {
		snap.CPUPercent = percents[0]
	}
	return snap
}
