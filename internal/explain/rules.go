package explain

import (
	"fmt"
	"strings"

	"anomaly-monitor/internal/models"
)

// TickContext carries what the explanation needs from one tick.
type TickContext struct {
	Snapshot       models.MetricsSnapshot
	Verdict        models.AnomalyVerdict
	Classification models.ClassificationResult
	TopApp         models.ProcessUsage
}

// MetricValue returns the host-level reading for the verdict's metric.
func (tc TickContext) MetricValue() float64 {
	switch tc.Verdict.Kind.Metric() {
	case "cpu":
		return tc.Snapshot.CPUPercent
	case "disk":
		return tc.Snapshot.DiskPercent
	default:
		return tc.Snapshot.MemoryPercent
	}
}

var kindCauses = map[models.AnomalyKind]string{
	models.KindHighCPU:    "Likely causes: runaway loops, inefficient algorithms or stuck background threads.",
	models.KindHighMemory: "Likely causes: memory leaks, oversized caches or unbounded data structures.",
	models.KindHighDisk:   "Likely causes: heavy read/write activity, log growth or large file generation.",
}

var familyChecks = map[string]string{
	models.ClassDOS:   "high traffic volume or error rate, check count and serror_rate",
	models.ClassProbe: "scanning behavior across services, check srv_count and diff_srv_rate",
	models.ClassR2L:   "remote access attempts, check num_failed_logins",
	models.ClassU2R:   "privilege escalation, check root_shell and num_file_creations",
}

// Baseline builds the rule-based explanation. It is deterministic and does
// no I/O.
func Baseline(tc TickContext) string {
	if !tc.Verdict.IsAnomalous {
		return ""
	}

	metric := tc.Verdict.Kind.Metric()
	parts := []string{
		fmt.Sprintf("Anomaly Detected: %s. %s usage reached %.2f%%.",
			tc.Verdict.Kind, strings.ToUpper(metric), tc.MetricValue()),
	}

	if tc.TopApp.Name != "" {
		parts = append(parts, fmt.Sprintf("Top %s consumer: '%s' at %.2f%%.",
			metric, tc.TopApp.Name, topValue(tc)))
	}
	if cause, ok := kindCauses[tc.Verdict.Kind]; ok {
		parts = append(parts, cause)
	}

	if tc.Classification.Binary == models.LabelAttack {
		if check, ok := familyChecks[tc.Classification.Multiclass]; ok {
			parts = append(parts, fmt.Sprintf("Classifier flagged %s: %s.", tc.Classification.Multiclass, check))
		} else {
			parts = append(parts, "Classifier flagged attack traffic.")
		}
	}
	return strings.Join(parts, " ")
}

func topValue(tc TickContext) float64 {
	switch tc.Verdict.Kind.Metric() {
	case "cpu":
		return tc.TopApp.CPUPercent
	case "disk":
		return tc.Snapshot.DiskPercent
	default:
		return tc.TopApp.MemoryPercent
	}
}
