package utils

import (
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	log "github.com/sirupsen/logrus"
)

// SystemStats is a point-in-time snapshot of host and process load.
type SystemStats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsedMB  uint64  `json:"memory_used_mb"`
	MemoryTotalMB uint64  `json:"memory_total_mb"`
	HeapAllocMB   uint64  `json:"heap_alloc_mb"`
	Goroutines    int     `json:"goroutines"`
	UptimeSeconds int64   `json:"uptime_seconds"`
}

var (
	startTime = time.Now()

	cpuMu         sync.Mutex
	cpuSampledAt  time.Time
	cpuLastSample float64
)

// GetSystemStats collects current system statistics. The CPU sample is
// cached for a second so bursts of dashboard polls don't each pay the
// sampling delay.
func GetSystemStats() SystemStats {
	stats := SystemStats{
		CPUPercent:    sampleCPU(),
		Goroutines:    runtime.NumGoroutine(),
		UptimeSeconds: int64(time.Since(startTime).Seconds()),
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		stats.MemoryPercent = vm.UsedPercent
		stats.MemoryUsedMB = vm.Used / 1024 / 1024
		stats.MemoryTotalMB = vm.Total / 1024 / 1024
	} else {
		log.WithError(err).Debug("Failed to read memory stats")
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	stats.HeapAllocMB = ms.HeapAlloc / 1024 / 1024

	return stats
}

func sampleCPU() float64 {
	cpuMu.Lock()
	defer cpuMu.Unlock()

	if time.Since(cpuSampledAt) < time.Second {
		return cpuLastSample
	}

	percents, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil || len(percents) == 0 {
		log.WithError(err).Debug("Failed to sample CPU usage")
		return cpuLastSample
	}

	cpuSampledAt = time.Now()
	cpuLastSample = percents[0]
	return cpuLastSample
}
