package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/disk"
	"github.com/shirou/gopsutil/load"
	"github.com/shirou/gopsutil/mem"
)

// hostProbe reads one device health value at scrape time.
type hostProbe struct {
	name string
	desc *prometheus.Desc
	read func() (float64, error)
}

// HostCollector exports device health gauges read through gopsutil on every
// scrape. A probe that fails is logged and skipped for that scrape.
type HostCollector struct {
	probes []hostProbe
	logger zerolog.Logger
}

// NewHostCollector creates a HostCollector; diskPath is the filesystem whose
// usage is reported ("/" when empty).
func NewHostCollector(diskPath string, logger zerolog.Logger) *HostCollector {
	if diskPath == "" {
		diskPath = "/"
	}

	return &HostCollector{
		logger: logger,
		probes: []hostProbe{
			{
				name: "cpu_usage_percent",
				desc: prometheus.NewDesc(prometheus.BuildFQName(namespace, "host", "cpu_usage_percent"),
					"Percentage of CPU utilization across all cores.", nil, nil),
				read: func() (float64, error) {
					percentages, err := cpu.Percent(0, false)
					if err != nil || len(percentages) == 0 {
						return 0, err
					}
					return percentages[0], nil
				},
			},
			{
				name: "memory_used_percent",
				desc: prometheus.NewDesc(prometheus.BuildFQName(namespace, "host", "memory_used_percent"),
					"Percentage of used virtual memory.", nil, nil),
				read: func() (float64, error) {
					stats, err := mem.VirtualMemory()
					if err != nil {
						return 0, err
					}
					return stats.UsedPercent, nil
				},
			},
			{
				name: "disk_used_percent",
				desc: prometheus.NewDesc(prometheus.BuildFQName(namespace, "host", "disk_used_percent"),
					"Percentage of disk space used.", nil, prometheus.Labels{"path": diskPath}),
				read: func() (float64, error) {
					stats, err := disk.Usage(diskPath)
					if err != nil {
						return 0, err
					}
					return stats.UsedPercent, nil
				},
			},
			{
				name: "load1",
				desc: prometheus.NewDesc(prometheus.BuildFQName(namespace, "host", "load1"),
					"One minute load average.", nil, nil),
				read: func() (float64, error) {
					avg, err := load.Avg()
					if err != nil {
						return 0, err
					}
					return avg.Load1, nil
				},
			},
		},
	}
}

func (h *HostCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, p := range h.probes {
		ch <- p.desc
	}
}

func (h *HostCollector) Collect(ch chan<- prometheus.Metric) {
	for _, p := range h.probes {
		value, err := p.read()
		if err != nil {
			h.logger.Warn().Err(err).Str("metric", p.name).Msg("Failed to read host metric")
			continue
		}
		ch <- prometheus.MustNewConstMetric(p.desc, prometheus.GaugeValue, value)
	}
}
