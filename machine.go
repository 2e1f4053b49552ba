/*
 * EmailHunter - Worker Pool Tuning
 *
 * Sizes the fetch pool from the host's CPU, memory and (optionally) a
 * measured network link.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
	"github.com/showwin/speedtest-go/speedtest"
)

// SystemPerformance represents the host readings the pool size is derived from.
type SystemPerformance struct {
	CPUCores           int
	CPUUsage           float64
	TotalMemoryMB      uint64
	AvailableMemoryMB  uint64
	MemoryUsagePercent float64
	NetworkSpeed       float64 // Mbps, 0 when not measured
	NetworkLatency     time.Duration
}

// errSpeedTest marks a failed network measurement. The host readings
// returned alongside it are still usable.
var errSpeedTest = errors.New("speed test failed")

// measureLink is replaced in tests.
var measureLink = measureNetwork

const (
	minWorkers = 4
	maxWorkers = 128
	// A worker holds at most one response body plus its extracted text.
	workerMemoryMB = 48
)

// TuneWorkers returns the fetch pool size to use when none is configured.
// Any failure to read the host falls back to runtime.NumCPU based sizing.
func TuneWorkers(ctx context.Context, speedTest bool, logger *slog.Logger) int {
	perf, err := AnalyzeSystemPerformance(ctx, speedTest)
	switch {
	case errors.Is(err, errSpeedTest):
		logger.Warn("network not measured, sizing from CPU and memory", "error", err)
	case err != nil:
		logger.Warn("system analysis failed, using CPU count", "error", err)
		perf = &SystemPerformance{CPUCores: runtime.NumCPU()}
	}
	workers := calculateWorkers(perf)
	logger.Info("fetch pool sized",
		"workers", workers,
		"cores", perf.CPUCores,
		"cpu_usage", fmt.Sprintf("%.0f%%", perf.CPUUsage),
		"available_mb", perf.AvailableMemoryMB,
		"mbps", fmt.Sprintf("%.1f", perf.NetworkSpeed),
	)
	return workers
}

// AnalyzeSystemPerformance reads CPU and memory, and runs a speed test when
// asked. A failed speed test returns the host readings with an error
// wrapping errSpeedTest.
func AnalyzeSystemPerformance(ctx context.Context, speedTest bool) (*SystemPerformance, error) {
	perf := &SystemPerformance{}

	cpuInfo, err := cpu.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to get CPU info: %w", err)
	}
	for _, c := range cpuInfo {
		perf.CPUCores += int(c.Cores)
	}
	if perf.CPUCores == 0 {
		perf.CPUCores = runtime.NumCPU()
	}

	if pct, err := cpu.PercentWithContext(ctx, 500*time.Millisecond, false); err == nil && len(pct) > 0 {
		perf.CPUUsage = pct[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get memory info: %w", err)
	}
	perf.TotalMemoryMB = vm.Total / 1024 / 1024
	perf.AvailableMemoryMB = vm.Available / 1024 / 1024
	perf.MemoryUsagePercent = vm.UsedPercent

	if speedTest {
		mbps, latency, err := measureLink()
		if err != nil {
			return perf, fmt.Errorf("%w: %w", errSpeedTest, err)
		}
		perf.NetworkSpeed = mbps
		perf.NetworkLatency = latency
	}
	return perf, nil
}

// measureNetwork runs a download test against the closest speedtest.net server.
func measureNetwork() (float64, time.Duration, error) {
	client := speedtest.New()
	servers, err := client.FetchServers()
	if err != nil {
		return 0, 0, fmt.Errorf("fetch speedtest servers: %w", err)
	}
	targets, err := servers.FindServer(nil)
	if err != nil || len(targets) == 0 {
		return 0, 0, fmt.Errorf("no speedtest server available: %v", err)
	}
	s := targets[0]
	if err := s.PingTest(nil); err != nil {
		return 0, 0, fmt.Errorf("ping test: %w", err)
	}
	if err := s.DownloadTest(); err != nil {
		return 0, 0, fmt.Errorf("download test: %w", err)
	}
	return s.DLSpeed.Mbps(), s.Latency, nil
}

// calculateWorkers favours I/O bound fetching: several workers per core,
// capped by memory and trimmed on a busy CPU or a slow link.
func calculateWorkers(perf *SystemPerformance) int {
	workers := perf.CPUCores * 4

	if perf.AvailableMemoryMB > 0 {
		if byMemory := int(perf.AvailableMemoryMB / workerMemoryMB); byMemory < workers {
			workers = byMemory
		}
	}

	if perf.CPUUsage > 80 {
		workers = int(float64(workers) * 0.7)
	} else if perf.CPUUsage > 0 && perf.CPUUsage < 20 {
		workers = int(float64(workers) * 1.3)
	}

	// Measured link speed: roughly one concurrent download per 2 Mbps.
	if perf.NetworkSpeed > 0 {
		if byLink := int(perf.NetworkSpeed / 2); byLink < workers {
			workers = byLink
		}
	}
	if perf.NetworkLatency > 200*time.Millisecond {
		workers = int(float64(workers) * 1.5)
	}

	if workers < minWorkers {
		workers = minWorkers
	}
	if workers > maxWorkers {
		workers = maxWorkers
	}
	return workers
}
