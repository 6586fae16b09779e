package models

import (
	"fmt"
	"time"
)

// TimestampLayout is the timestamp format written to the event log.
const TimestampLayout = "2006-01-02 15:04:05"

// NoneLabel is written for absent anomaly kinds, severities and app names.
const NoneLabel = "None"

type ProcessUsage struct {
	Name          string  `json:"name"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
}

// MetricsSnapshot is one instantaneous host sample. It is owned by the tick
// that produced it.
type MetricsSnapshot struct {
	CPUPercent    float64        `json:"cpu_percent"`
	MemoryPercent float64        `json:"memory_percent"`
	DiskPercent   float64        `json:"disk_percent"`
	Processes     []ProcessUsage `json:"processes"`
}

// TopCPU returns the process with the highest CPU usage.
func (s MetricsSnapshot) TopCPU() (ProcessUsage, bool) {
	var top ProcessUsage
	found := false
	for _, p := range s.Processes {
		if p.CPUPercent > top.CPUPercent {
			top = p
			found = true
		}
	}
	return top, found
}

// TopMemory returns the process with the highest memory usage.
func (s MetricsSnapshot) TopMemory() (ProcessUsage, bool) {
	var top ProcessUsage
	found := false
	for _, p := range s.Processes {
		if p.MemoryPercent > top.MemoryPercent {
			top = p
			found = true
		}
	}
	return top, found
}

type AnomalyKind int

const (
	KindNone AnomalyKind = iota
	KindHighCPU
	KindHighMemory
	KindHighDisk
)

func (k AnomalyKind) String() string {
	switch k {
	case KindHighCPU:
		return "High CPU Usage"
	case KindHighMemory:
		return "High Memory Usage"
	case KindHighDisk:
		return "High Disk Usage"
	default:
		return NoneLabel
	}
}

// Metric names the resource a kind refers to: cpu, memory or disk.
func (k AnomalyKind) Metric() string {
	switch k {
	case KindHighCPU:
		return "cpu"
	case KindHighDisk:
		return "disk"
	default:
		return "memory"
	}
}

type Severity int

const (
	SeverityNone Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "Low"
	case SeverityMedium:
		return "Medium"
	case SeverityHigh:
		return "High"
	default:
		return NoneLabel
	}
}

type AnomalyVerdict struct {
	IsAnomalous bool        `json:"is_anomalous"`
	Kind        AnomalyKind `json:"kind"`
	Severity    Severity    `json:"severity"`
}

// Connection is one row of the local connection table.
type Connection struct {
	LocalIP    string `json:"local_ip"`
	LocalPort  uint32 `json:"local_port"`
	RemoteIP   string `json:"remote_ip"`
	RemotePort uint32 `json:"remote_port"`
	Status     string `json:"status"`
}

// ScanAlert is emitted when a remote address crosses the port-scan threshold.
type ScanAlert struct {
	Address string `json:"address"`
	Hits    int    `json:"hits"`
}

func (a ScanAlert) String() string {
	return fmt.Sprintf("%s (Ports hit: %d)", a.Address, a.Hits)
}

type BinaryLabel int

const (
	LabelNormal BinaryLabel = iota
	LabelAttack
)

func (l BinaryLabel) String() string {
	if l == LabelAttack {
		return "Attack"
	}
	return "Normal"
}

// Multiclass vocabulary of the attack-family model.
const (
	ClassNormal  = "normal"
	ClassDOS     = "DOS"
	ClassProbe   = "PROBE"
	ClassR2L     = "R2L"
	ClassU2R     = "U2R"
	ClassUnknown = "unknown"
)

type ClassificationResult struct {
	Binary     BinaryLabel `json:"binary"`
	Multiclass string      `json:"multiclass"`
}

// LogEntry is one row of the durable event log.
type LogEntry struct {
	Timestamp       time.Time `json:"timestamp"`
	CPU             float64   `json:"cpu"`
	Memory          float64   `json:"memory"`
	Disk            float64   `json:"disk"`
	Anomaly         bool      `json:"anomaly"`
	AnomalyType     string    `json:"anomaly_type"`
	Severity        string    `json:"severity"`
	TopAppName      string    `json:"top_app_name"`
	Explanation     string    `json:"explanation"`
	ModelPrediction int       `json:"model_prediction"`
	ModelClass      string    `json:"model_class"`
}

// TickStats summarises the ticks logged so far.
type TickStats struct {
	Profile         string    `json:"profile"`
	CurrentCPU      float64   `json:"current_cpu"`
	RollingCPU      float64   `json:"rolling_cpu_average"`
	AnomalyRate     float64   `json:"anomaly_rate"`
	TotalTicks      int64     `json:"total_ticks"`
	FailedTicks     int64     `json:"failed_ticks"`
	TotalAnomalies  int64     `json:"total_anomalies"`
	LastAnomalyTime time.Time `json:"last_anomaly_time,omitempty"`
	WindowSize      int       `json:"window_size"`
}
