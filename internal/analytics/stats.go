package analytics

import (
	"sync"

	"anomaly-monitor/internal/models"
)

const maxRecentAnomalies = 100

// Stats keeps rolling figures over logged ticks. The monitoring loop is the
// only writer; the status API reads concurrently.
type Stats struct {
	windowSize int
	cpuWindow  []float64
	anomalies  []models.LogEntry
	stats      models.TickStats
	mu         sync.RWMutex
}

func NewStats(profile string, windowSize int) *Stats {
	if windowSize <= 0 {
		windowSize = 50
	}
	return &Stats{
		windowSize: windowSize,
		cpuWindow:  make([]float64, 0, windowSize),
		anomalies:  make([]models.LogEntry, 0, maxRecentAnomalies),
		stats: models.TickStats{
			Profile:    profile,
			WindowSize: windowSize,
		},
	}
}

// Record folds a successfully logged entry into the statistics.
func (a *Stats) Record(entry models.LogEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.cpuWindow = append(a.cpuWindow, entry.CPU)
	if len(a.cpuWindow) > a.windowSize {
		a.cpuWindow = a.cpuWindow[1:]
	}

	a.stats.CurrentCPU = entry.CPU
	a.stats.RollingCPU = a.rollingAverage()
	a.stats.TotalTicks++

	if entry.Anomaly {
		a.stats.TotalAnomalies++
		a.stats.LastAnomalyTime = entry.Timestamp

		a.anomalies = append(a.anomalies, entry)
		if len(a.anomalies) > maxRecentAnomalies {
			a.anomalies = a.anomalies[1:]
		}
	}
	a.stats.AnomalyRate = float64(a.stats.TotalAnomalies) / float64(a.stats.TotalTicks)
}

// RecordFailure counts a tick that was abandoned before logging.
func (a *Stats) RecordFailure() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats.FailedTicks++
}

func (a *Stats) rollingAverage() float64 {
	if len(a.cpuWindow) == 0 {
		return 0
	}

	var sum float64
	for _, v := range a.cpuWindow {
		sum += v
	}
	return sum / float64(len(a.cpuWindow))
}

func (a *Stats) Current() models.TickStats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stats
}

// RecentAnomalies returns up to limit of the latest anomalous entries,
// oldest first.
func (a *Stats) RecentAnomalies(limit int) []models.LogEntry {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if limit <= 0 || limit > len(a.anomalies) {
		limit = len(a.anomalies)
	}

	out := make([]models.LogEntry, limit)
	copy(out, a.anomalies[len(a.anomalies)-limit:])
	return out
}
