package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Ticks              *prometheus.CounterVec
	TickDuration       prometheus.Histogram
	Anomalies          *prometheus.CounterVec
	NewAddresses       prometheus.Counter
	PortScanAlerts     prometheus.Counter
	ClassifierFailures prometheus.Counter
	NarrativeFailures  prometheus.Counter
	CPUPercent         prometheus.Gauge
	MemoryPercent      prometheus.Gauge
	DiskPercent        prometheus.Gauge
}

// NewMetrics registers the loop instruments with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Ticks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_ticks_total",
			Help: "Total number of monitoring ticks by outcome",
		}, []string{"profile", "outcome"}),

		TickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "monitor_tick_duration_seconds",
			Help:    "Duration of monitoring ticks",
			Buckets: []float64{.1, .25, .5, 1, 1.5, 2, 5, 10, 20},
		}),

		Anomalies: f.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_anomalies_total",
			Help: "Total number of threshold anomalies logged",
		}, []string{"kind"}),

		NewAddresses: f.NewCounter(prometheus.CounterOpts{
			Name: "monitor_new_addresses_total",
			Help: "Local interface addresses seen for the first time",
		}),

		PortScanAlerts: f.NewCounter(prometheus.CounterOpts{
			Name: "monitor_port_scan_alerts_total",
			Help: "Port-scan alerts raised",
		}),

		ClassifierFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "monitor_classifier_failures_total",
			Help: "Ticks where inference failed and the fallback label was used",
		}),

		NarrativeFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "monitor_narrative_failures_total",
			Help: "Narrative augmentation calls that failed",
		}),

		CPUPercent: f.NewGauge(prometheus.GaugeOpts{
			Name: "monitor_cpu_percent",
			Help: "Last sampled CPU usage",
		}),
		MemoryPercent: f.NewGauge(prometheus.GaugeOpts{
			Name: "monitor_memory_percent",
			Help: "Last sampled memory usage",
		}),
		DiskPercent: f.NewGauge(prometheus.GaugeOpts{
			Name: "monitor_disk_percent",
			Help: "Last sampled disk usage",
		}),
	}
}
