package hostapi

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemInfo is the snapshot exposed to plugins holding system.info.
type SystemInfo struct {
	Hostname        string  `json:"hostname"`
	OS              string  `json:"os"`
	Platform        string  `json:"platform"`
	PlatformVersion string  `json:"platform_version"`
	Arch            string  `json:"arch"`
	CPUs            int     `json:"cpus"`
	MemoryTotalMB   uint64  `json:"memory_total_mb"`
	MemoryUsedPct   float64 `json:"memory_used_pct"`
	UptimeSeconds   uint64  `json:"uptime_seconds"`
}

// CollectSystemInfo gathers host and memory statistics.
func CollectSystemInfo(ctx context.Context) (SystemInfo, error) {
	hi, err := host.InfoWithContext(ctx)
	if err != nil {
		return SystemInfo{}, fmt.Errorf("host info: %w", err)
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return SystemInfo{}, fmt.Errorf("memory info: %w", err)
	}
	cpus, err := cpu.CountsWithContext(ctx, true)
	if err != nil || cpus == 0 {
		cpus = runtime.NumCPU()
	}
	return SystemInfo{
		Hostname:        hi.Hostname,
		OS:              hi.OS,
		Platform:        hi.Platform,
		PlatformVersion: hi.PlatformVersion,
		Arch:            runtime.GOARCH,
		CPUs:            cpus,
		MemoryTotalMB:   vm.Total / (1024 * 1024),
		MemoryUsedPct:   vm.UsedPercent,
		UptimeSeconds:   hi.Uptime,
	}, nil
}

// SystemInfo returns a snapshot of the host.
func (f *Facade) SystemInfo(ctx context.Context) (SystemInfo, error) {
	return CollectSystemInfo(ctx)
}
