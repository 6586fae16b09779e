package eventlog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"anomaly-monitor/internal/models"
)

func sampleEntries(n int) []models.LogEntry {
	base := time.Date(2024, 3, 9, 14, 30, 0, 0, time.Local)
	out := make([]models.LogEntry, n)
	for i := range out {
		out[i] = models.LogEntry{
			Timestamp:       base.Add(time.Duration(i*5) * time.Second),
			CPU:             12.5 + float64(i),
			Memory:          48.3,
			Disk:            71.25,
			AnomalyType:     models.NoneLabel,
			Severity:        models.NoneLabel,
			TopAppName:      "postgres",
			ModelPrediction: 0,
			ModelClass:      models.ClassNormal,
		}
	}
	// an anomalous row with characters that need quoting
	out[n-1].CPU = 93.7
	out[n-1].Anomaly = true
	out[n-1].AnomalyType = "High CPU Usage"
	out[n-1].Severity = "High"
	out[n-1].Explanation = "Anomaly Detected: High CPU Usage. Top cpu consumer: 'a, \"b\"'\n\nnarrative"
	out[n-1].ModelPrediction = 1
	out[n-1].ModelClass = models.ClassDOS
	return out
}

func TestCSVStore_HeaderPlusRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "log.csv")
	s := NewCSVStore(path)
	if err := s.EnsureSchema(); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	entries := sampleEntries(4)
	entries[3].Explanation = "" // quoted newlines are covered by TestCSVStore_RoundTrip
	for _, e := range entries {
		if err := s.Append(e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 1 header + 4 rows, got %d lines", len(lines))
	}
	if lines[0] != strings.Join(Header, ",") {
		t.Errorf("unexpected header %q", lines[0])
	}
	if lines[1] != "2024-03-09 14:30:00,12.5,48.3,71.25,0,None,None,postgres,,0,normal" {
		t.Errorf("unexpected first row %q", lines[1])
	}
}

func TestCSVStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.csv")
	s := NewCSVStore(path)
	if err := s.EnsureSchema(); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	entries := sampleEntries(3)
	for _, e := range entries {
		if err := s.Append(e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := s.Recent(0)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("expected %d entries, got %d", len(entries), len(got))
	}
	for i := range entries {
		if !got[i].Timestamp.Equal(entries[i].Timestamp) {
			t.Errorf("row %d: timestamp %v != %v", i, got[i].Timestamp, entries[i].Timestamp)
		}
		got[i].Timestamp = entries[i].Timestamp
		if got[i] != entries[i] {
			t.Errorf("row %d: expected %+v, got %+v", i, entries[i], got[i])
		}
	}
}

func TestCSVStore_EnsureSchemaNeverTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.csv")
	s := NewCSVStore(path)
	if err := s.EnsureSchema(); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if err := s.Append(sampleEntries(1)[0]); err != nil {
		t.Fatalf("append: %v", err)
	}

	before, _ := os.ReadFile(path)
	if err := NewCSVStore(path).EnsureSchema(); err != nil {
		t.Fatalf("second ensure schema: %v", err)
	}
	after, _ := os.ReadFile(path)
	if string(before) != string(after) {
		t.Error("EnsureSchema modified an existing store")
	}
}

func TestCSVStore_AppendWithoutSchemaFails(t *testing.T) {
	s := NewCSVStore(filepath.Join(t.TempDir(), "missing.csv"))
	if err := s.Append(sampleEntries(1)[0]); err == nil {
		t.Error("append to a store that was never created should fail")
	}
}

func TestCSVStore_RecentLimit(t *testing.T) {
	s := NewCSVStore(filepath.Join(t.TempDir(), "log.csv"))
	if err := s.EnsureSchema(); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if got, err := s.Recent(10); err != nil || len(got) != 0 {
		t.Fatalf("empty store: expected no entries, got %v %v", got, err)
	}

	entries := sampleEntries(5)
	for _, e := range entries {
		if err := s.Append(e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	got, err := s.Recent(2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 || got[1].ModelClass != models.ClassDOS {
		t.Errorf("expected the last two entries, got %+v", got)
	}
}

func TestDecodeRow_Rejects(t *testing.T) {
	good := EncodeRow(sampleEntries(1)[0])

	short := good[:5]
	badTime := append([]string{}, good...)
	badTime[0] = "09/03/2024"
	badFlag := append([]string{}, good...)
	badFlag[4] = "maybe"
	badCPU := append([]string{}, good...)
	badCPU[1] = "high"

	for name, row := range map[string][]string{
		"short": short, "time": badTime, "flag": badFlag, "cpu": badCPU,
	} {
		if _, err := DecodeRow(row, time.Local); !errors.Is(err, ErrMalformedRow) {
			t.Errorf("%s: expected ErrMalformedRow, got %v", name, err)
		}
	}
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	store, err := Open(KindSQLite, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	entries := sampleEntries(3)
	for _, e := range entries {
		if err := store.Append(e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := store.Recent(2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].CPU != entries[1].CPU || got[1].ModelClass != models.ClassDOS {
		t.Errorf("expected entries 1 and 2 oldest first, got %+v", got)
	}
	if got[1].Explanation != entries[2].Explanation {
		t.Errorf("explanation not preserved: %q", got[1].Explanation)
	}

	// reopening migrates without losing rows
	store.Close()
	reopened, err := Open(KindSQLite, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	n, err := reopened.(*SQLiteStore).Count()
	if err != nil || n != 3 {
		t.Errorf("expected 3 rows after reopen, got %d (%v)", n, err)
	}
}

func TestSQLiteStore_RejectsNonDatabaseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	junk := []byte(strings.Repeat("this is not an sqlite database\n", 256))
	if err := os.WriteFile(path, junk, 0o644); err != nil {
		t.Fatal(err)
	}

	store, err := NewSQLiteStore(path)
	if err == nil {
		store.Close()
		t.Fatal("expected an error for a file that is not a database")
	}
	if store != nil {
		t.Errorf("expected no store on failure, got %+v", store)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != string(junk) {
		t.Error("failed open must leave the existing file untouched")
	}
}

func TestOpen_UnknownKind(t *testing.T) {
	if _, err := Open("parquet", filepath.Join(t.TempDir(), "x")); err == nil {
		t.Error("expected error for unknown store kind")
	}
}
