package eventlog

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"anomaly-monitor/internal/models"
)

// CSVStore is the canonical store: one header line, then one row per tick.
type CSVStore struct {
	path     string
	location *time.Location
}

func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path, location: time.Local}
}

func (s *CSVStore) Path() string {
	return s.path
}

// EnsureSchema writes the header only when the file does not exist yet.
func (s *CSVStore) EnsureSchema() error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	// O_EXCL makes creation and the existence check one step, so an
	// existing log is never opened for writing here.
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, os.ErrExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create event log: %w", err)
	}
	defer f.Close()

	line, err := encodeLine(Header)
	if err != nil {
		return err
	}
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	return f.Sync()
}

// Append writes one complete row with a single write call.
func (s *CSVStore) Append(entry models.LogEntry) error {
	line, err := encodeLine(EncodeRow(entry))
	if err != nil {
		return err
	}

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open event log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("failed to append entry: %w", err)
	}
	return nil
}

func encodeLine(fields []string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(fields); err != nil {
		return nil, fmt.Errorf("failed to encode row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to encode row: %w", err)
	}
	return buf.Bytes(), nil
}

// Recent reads the whole file and returns the last limit rows.
func (s *CSVStore) Recent(limit int) ([]models.LogEntry, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(Header)

	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var entries []models.LogEntry
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read event log: %w", err)
		}
		e, err := DecodeRow(row, s.location)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

func (s *CSVStore) Close() error {
	return nil
}
