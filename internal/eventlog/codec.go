package eventlog

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"anomaly-monitor/internal/models"
)

// Header is the column order of the durable log. Dashboards depend on it.
var Header = []string{
	"timestamp", "cpu", "memory", "disk", "anomaly",
	"anomaly_type", "severity", "top_app_name", "explanation",
	"model_prediction", "model_class",
}

var ErrMalformedRow = errors.New("malformed log row")

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// EncodeRow renders an entry in Header order.
func EncodeRow(e models.LogEntry) []string {
	return []string{
		e.Timestamp.Format(models.TimestampLayout),
		formatFloat(e.CPU),
		formatFloat(e.Memory),
		formatFloat(e.Disk),
		formatBool(e.Anomaly),
		e.AnomalyType,
		e.Severity,
		e.TopAppName,
		e.Explanation,
		strconv.Itoa(e.ModelPrediction),
		e.ModelClass,
	}
}

// DecodeRow parses a row written by EncodeRow. Timestamps are read in loc.
func DecodeRow(row []string, loc *time.Location) (models.LogEntry, error) {
	if len(row) != len(Header) {
		return models.LogEntry{}, fmt.Errorf("%w: %d fields, want %d", ErrMalformedRow, len(row), len(Header))
	}

	ts, err := time.ParseInLocation(models.TimestampLayout, row[0], loc)
	if err != nil {
		return models.LogEntry{}, fmt.Errorf("%w: timestamp: %v", ErrMalformedRow, err)
	}

	var nums [3]float64
	for i := range nums {
		if nums[i], err = strconv.ParseFloat(row[1+i], 64); err != nil {
			return models.LogEntry{}, fmt.Errorf("%w: %s: %v", ErrMalformedRow, Header[1+i], err)
		}
	}

	anomaly, err := parseBool(row[4])
	if err != nil {
		return models.LogEntry{}, fmt.Errorf("%w: anomaly: %v", ErrMalformedRow, err)
	}
	pred, err := strconv.Atoi(row[9])
	if err != nil {
		return models.LogEntry{}, fmt.Errorf("%w: model_prediction: %v", ErrMalformedRow, err)
	}

	return models.LogEntry{
		Timestamp:       ts,
		CPU:             nums[0],
		Memory:          nums[1],
		Disk:            nums[2],
		Anomaly:         anomaly,
		AnomalyType:     row[5],
		Severity:        row[6],
		TopAppName:      row[7],
		Explanation:     row[8],
		ModelPrediction: pred,
		ModelClass:      row[10],
	}, nil
}

func parseBool(s string) (bool, error) {
	switch s {
	case "1", "True", "true":
		return true, nil
	case "0", "False", "false":
		return false, nil
	}
	return false, fmt.Errorf("invalid flag %q", s)
}
