package main

import (
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// ResourceUsage is a snapshot of the process footprint after a run.
type ResourceUsage struct {
	RSSBytes         uint64  `json:"rss_bytes"`
	CPUPercent       float64 `json:"cpu_percent"`
	Threads          int32   `json:"threads"`
	Goroutines       int     `json:"goroutines"`
	HeapAllocBytes   uint64  `json:"heap_alloc_bytes"`
	GCCycles         uint32  `json:"gc_cycles"`
	SystemMemoryUsed float64 `json:"system_memory_used_percent"`
}

// CurrentResourceUsage collects what it can; fields the platform does not
// report stay zero.
func CurrentResourceUsage() ResourceUsage {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	usage := ResourceUsage{
		Goroutines:     runtime.NumGoroutine(),
		HeapAllocBytes: ms.HeapAlloc,
		GCCycles:       ms.NumGC,
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mi, err := proc.MemoryInfo(); err == nil {
			usage.RSSBytes = mi.RSS
		}
		usage.CPUPercent, _ = proc.CPUPercent()
		usage.Threads, _ = proc.NumThreads()
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		usage.SystemMemoryUsed = vm.UsedPercent
	}
	return usage
}
