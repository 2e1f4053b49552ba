package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcdannyboy/EmailHunter/internal/platform/logger"
)

func TestCalculateWorkers(t *testing.T) {
	tests := []struct {
		name string
		perf SystemPerformance
		want int
	}{
		{"cores only", SystemPerformance{CPUCores: 4}, 16},
		{"memory bound", SystemPerformance{CPUCores: 16, AvailableMemoryMB: 480}, 10},
		{"busy cpu", SystemPerformance{CPUCores: 10, CPUUsage: 90}, 28},
		{"idle cpu", SystemPerformance{CPUCores: 10, CPUUsage: 10}, 52},
		{"slow link", SystemPerformance{CPUCores: 8, NetworkSpeed: 20}, 10},
		{"high latency", SystemPerformance{CPUCores: 4, NetworkLatency: 300 * time.Millisecond}, 24},
		{"floor", SystemPerformance{CPUCores: 1, AvailableMemoryMB: 50}, minWorkers},
		{"ceiling", SystemPerformance{CPUCores: 256}, maxWorkers},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, calculateWorkers(&tt.perf))
		})
	}
}

func TestSpeedTestFailureIsReported(t *testing.T) {
	measureLink = func() (float64, time.Duration, error) {
		return 0, 0, errors.New("no speedtest server available")
	}
	t.Cleanup(func() { measureLink = measureNetwork })

	perf, err := AnalyzeSystemPerformance(context.Background(), true)
	require.ErrorIs(t, err, errSpeedTest)
	require.NotNil(t, perf)
	assert.Positive(t, perf.CPUCores)
	assert.Zero(t, perf.NetworkSpeed)

	var buf bytes.Buffer
	workers := TuneWorkers(context.Background(), true, logger.NewWithWriter(&buf, "info"))
	assert.Contains(t, buf.String(), "network not measured")
	assert.Contains(t, buf.String(), "no speedtest server available")
	assert.GreaterOrEqual(t, workers, minWorkers)
	assert.LessOrEqual(t, workers, maxWorkers)
}

func TestSpeedTestReadingsFeedSizing(t *testing.T) {
	measureLink = func() (float64, time.Duration, error) {
		return 12, 40 * time.Millisecond, nil
	}
	t.Cleanup(func() { measureLink = measureNetwork })

	perf, err := AnalyzeSystemPerformance(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 12.0, perf.NetworkSpeed)
	assert.Equal(t, 40*time.Millisecond, perf.NetworkLatency)
}
