// Package diagnostics reports process and host health: CPU, memory, and
// goroutine counts, sampled periodically and on demand.
package diagnostics

import (
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Snapshot is one diagnostics sample.
type Snapshot struct {
	CPUPercent     float64 `json:"cpu_percent"`
	MemUsedPercent float64 `json:"mem_used_percent"`
	MemUsedMB      uint64  `json:"mem_used_mb"`
	Goroutines     int     `json:"goroutines"`
	SampledAt      string  `json:"sampled_at"`
}

// Collect samples current host and process metrics. Metric collection
// failures degrade to zero values; diagnostics never fail a caller.
func Collect() Snapshot {
	snap := Snapshot{
		Goroutines: runtime.NumGoroutine(),
		SampledAt:  time.Now().Format(time.RFC3339),
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		snap.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		snap.MemUsedPercent = vm.UsedPercent
		snap.MemUsedMB = vm.Used / (1024 * 1024)
	}

	return snap
}

// Job samples and logs diagnostics on a schedule.
type Job struct {
	log zerolog.Logger
}

// NewJob creates a diagnostics job.
func NewJob(log zerolog.Logger) *Job {
	return &Job{log: log.With().Str("job", "diagnostics").Logger()}
}

// Run logs one diagnostics sample.
func (j *Job) Run() error {
	snap := Collect()
	j.log.Info().
		Float64("cpu_percent", snap.CPUPercent).
		Float64("mem_used_percent", snap.MemUsedPercent).
		Uint64("mem_used_mb", snap.MemUsedMB).
		Int("goroutines", snap.Goroutines).
		Msg("Diagnostics sample")
	return nil
}

// Name returns the job name for scheduling and logging.
func (j *Job) Name() string {
	return "diagnostics"
}
