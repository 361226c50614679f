package api

import (
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"
)

// ProcessMetrics снимает показатели процесса для /health.
type ProcessMetrics struct {
	StartTime time.Time
	proc      *process.Process
}

// NewProcessMetrics запоминает время запуска.
func NewProcessMetrics() *ProcessMetrics {
	pm := &ProcessMetrics{StartTime: time.Now()}
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		pm.proc = p
	}
	return pm
}

// ProcessStats: снимок показателей процесса.
type ProcessStats struct {
	UptimeSeconds int64   `json:"uptime_seconds"`
	MemoryMB      float64 `json:"memory_mb"`
	RSSMB         float64 `json:"rss_mb,omitempty"`
	CPUPercent    float64 `json:"cpu_percent"`
	Goroutines    int     `json:"goroutines"`
	NumGC         uint32  `json:"num_gc"`
}

// Snapshot собирает показатели. Ошибки gopsutil оставляют поля нулевыми.
func (pm *ProcessMetrics) Snapshot() ProcessStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	st := ProcessStats{
		UptimeSeconds: int64(time.Since(pm.StartTime).Seconds()),
		MemoryMB:      float64(m.Alloc) / 1024 / 1024,
		Goroutines:    runtime.NumGoroutine(),
		NumGC:         m.NumGC,
	}
	st.CPUPercent = pm.cpuPercent()
	if pm.proc != nil {
		if mem, err := pm.proc.MemoryInfo(); err == nil {
			st.RSSMB = float64(mem.RSS) / 1024 / 1024
		}
	}
	return st
}

// cpuPercent: загрузка CPU процессом, при ошибке, системой в целом.
func (pm *ProcessMetrics) cpuPercent() float64 {
	if pm.proc != nil {
		if v, err := pm.proc.CPUPercent(); err == nil {
			return v
		}
	}
	// Без интервала gopsutil сравнивает с прошлым вызовом и не блокирует
	if vs, err := cpu.Percent(0, false); err == nil && len(vs) > 0 {
		return vs[0]
	}
	return 0
}
