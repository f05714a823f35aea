package spectrum

import (
	"context"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shirou/gopsutil/v3/process"
)

// HealthReporter periodically samples this process's own CPU and
// memory usage and publishes them as Prometheus gauges, the same
// "is the engine itself healthy" signal the SDR sibling project
// exposes per-decoder.
type HealthReporter struct {
	cpuPercent *prometheus.GaugeVec
	rssBytes   *prometheus.GaugeVec
	proc       *process.Process
}

// NewHealthReporter registers health gauges with reg and attaches to
// the current process.
func NewHealthReporter(reg prometheus.Registerer) (*HealthReporter, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	factory := promauto.With(reg)
	return &HealthReporter{
		proc: proc,
		cpuPercent: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "spectrumcore",
			Name:      "process_cpu_percent",
			Help:      "CPU utilization of the spectrumcore process.",
		}, []string{}),
		rssBytes: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "spectrumcore",
			Name:      "process_rss_bytes",
			Help:      "Resident set size of the spectrumcore process.",
		}, []string{}),
	}, nil
}

// Run samples health metrics every interval until ctx is cancelled.
func (h *HealthReporter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if cpu, err := h.proc.CPUPercent(); err == nil {
				h.cpuPercent.WithLabelValues().Set(cpu)
			}
			if mem, err := h.proc.MemoryInfo(); err == nil && mem != nil {
				h.rssBytes.WithLabelValues().Set(float64(mem.RSS))
			}
		}
	}
}
