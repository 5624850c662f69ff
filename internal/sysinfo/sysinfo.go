// Package sysinfo describes the host a benchmark ran on.
package sysinfo

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

const SchemaV1 = "geobench.system.v1"

type Document struct {
	Schema       string     `json:"schema"`
	InvocationID string     `json:"invocation_id"`
	CollectedAt  string     `json:"collected_at"`
	Host         HostInfo   `json:"host"`
	CPU          CPUInfo    `json:"cpu"`
	Memory       MemoryInfo `json:"memory"`
	Disks        []DiskInfo `json:"disks"`
	Warnings     []string   `json:"warnings,omitempty"`
}

type HostInfo struct {
	Hostname        string `json:"hostname"`
	OS              string `json:"os"`
	Platform        string `json:"platform"`
	PlatformFamily  string `json:"platform_family,omitempty"`
	PlatformVersion string `json:"platform_version,omitempty"`
	KernelVersion   string `json:"kernel_version,omitempty"`
	KernelArch      string `json:"kernel_arch,omitempty"`
	Virtualization  string `json:"virtualization,omitempty"`
	BootTime        uint64 `json:"boot_time,omitempty"`
}

type CPUInfo struct {
	ModelName     string  `json:"model_name"`
	Vendor        string  `json:"vendor,omitempty"`
	MHz           float64 `json:"mhz,omitempty"`
	PhysicalCores int     `json:"physical_cores"`
	LogicalCores  int     `json:"logical_cores"`
}

type MemoryInfo struct {
	TotalBytes     uint64 `json:"total_bytes"`
	AvailableBytes uint64 `json:"available_bytes"`
	SwapTotalBytes uint64 `json:"swap_total_bytes"`
}

type DiskInfo struct {
	Device      string  `json:"device"`
	Mountpoint  string  `json:"mountpoint"`
	Fstype      string  `json:"fstype"`
	TotalBytes  uint64  `json:"total_bytes"`
	FreeBytes   uint64  `json:"free_bytes"`
	UsedPercent float64 `json:"used_percent"`
}

// Collect gathers what the host will tell about itself. Individual probes
// that fail become warnings; Collect only errors when nothing is known.
func Collect(ctx context.Context, invocationID string, logger *slog.Logger) (Document, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	doc := Document{
		Schema:       SchemaV1,
		InvocationID: invocationID,
		CollectedAt:  time.Now().UTC().Format(time.RFC3339Nano),
		Host:         HostInfo{OS: runtime.GOOS, KernelArch: runtime.GOARCH},
		Disks:        []DiskInfo{},
	}
	warn := func(probe string, err error) {
		logger.Warn("system probe failed", "probe", probe, "error", err)
		doc.Warnings = append(doc.Warnings, fmt.Sprintf("%s: %v", probe, err))
	}
	failed := 0

	if info, err := host.InfoWithContext(ctx); err != nil {
		warn("host", err)
		failed++
	} else {
		doc.Host = HostInfo{
			Hostname:        info.Hostname,
			OS:              info.OS,
			Platform:        info.Platform,
			PlatformFamily:  info.PlatformFamily,
			PlatformVersion: info.PlatformVersion,
			KernelVersion:   info.KernelVersion,
			KernelArch:      info.KernelArch,
			Virtualization:  info.VirtualizationSystem,
			BootTime:        info.BootTime,
		}
	}

	if infos, err := cpu.InfoWithContext(ctx); err != nil {
		warn("cpu", err)
		failed++
	} else if len(infos) > 0 {
		doc.CPU.ModelName = infos[0].ModelName
		doc.CPU.Vendor = infos[0].VendorID
		doc.CPU.MHz = infos[0].Mhz
	}
	if n, err := cpu.CountsWithContext(ctx, false); err == nil {
		doc.CPU.PhysicalCores = n
	}
	if n, err := cpu.CountsWithContext(ctx, true); err != nil {
		warn("cpu_counts", err)
		doc.CPU.LogicalCores = runtime.NumCPU()
	} else {
		doc.CPU.LogicalCores = n
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		warn("memory", err)
		failed++
	} else {
		doc.Memory.TotalBytes = vm.Total
		doc.Memory.AvailableBytes = vm.Available
	}
	if swap, err := mem.SwapMemoryWithContext(ctx); err == nil {
		doc.Memory.SwapTotalBytes = swap.Total
	}

	parts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		warn("disk", err)
		failed++
	}
	for _, p := range parts {
		usage, err := disk.UsageWithContext(ctx, p.Mountpoint)
		if err != nil {
			logger.Debug("disk usage unavailable", "mountpoint", p.Mountpoint, "error", err)
			continue
		}
		doc.Disks = append(doc.Disks, DiskInfo{
			Device:      p.Device,
			Mountpoint:  p.Mountpoint,
			Fstype:      p.Fstype,
			TotalBytes:  usage.Total,
			FreeBytes:   usage.Free,
			UsedPercent: usage.UsedPercent,
		})
	}

	if failed == 4 {
		return doc, fmt.Errorf("collect system info: every probe failed")
	}
	return doc, nil
}
