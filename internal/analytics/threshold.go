package analytics

import "anomaly-monitor/internal/models"

// Default thresholds, in percent.
const (
	DefaultCPUThreshold    = 85.0
	DefaultMemoryThreshold = 85.0
	DefaultDiskThreshold   = 90.0
)

// ThresholdDetector maps a snapshot to a verdict using fixed limits.
// Checks run CPU, then memory, then disk; the first match wins and values
// equal to a limit do not trigger.
type ThresholdDetector struct {
	CPU    float64
	Memory float64
	Disk   float64
}

func NewThresholdDetector() ThresholdDetector {
	return ThresholdDetector{
		CPU:    DefaultCPUThreshold,
		Memory: DefaultMemoryThreshold,
		Disk:   DefaultDiskThreshold,
	}
}

func (d ThresholdDetector) Classify(s models.MetricsSnapshot) models.AnomalyVerdict {
	switch {
	case s.CPUPercent > d.CPU:
		return models.AnomalyVerdict{IsAnomalous: true, Kind: models.KindHighCPU, Severity: models.SeverityHigh}
	case s.MemoryPercent > d.Memory:
		return models.AnomalyVerdict{IsAnomalous: true, Kind: models.KindHighMemory, Severity: models.SeverityMedium}
	case s.DiskPercent > d.Disk:
		return models.AnomalyVerdict{IsAnomalous: true, Kind: models.KindHighDisk, Severity: models.SeverityMedium}
	}
	return models.AnomalyVerdict{}
}
