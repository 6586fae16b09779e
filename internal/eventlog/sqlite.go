package eventlog

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"anomaly-monitor/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// EventRecord is the table row for SQLiteStore.
type EventRecord struct {
	ID              uint      `gorm:"primaryKey"`
	Timestamp       time.Time `gorm:"index"`
	CPU             float64
	Memory          float64
	Disk            float64
	Anomaly         bool `gorm:"index"`
	AnomalyType     string
	Severity        string
	TopAppName      string
	Explanation     string
	ModelPrediction int
	ModelClass      string
}

func (EventRecord) TableName() string {
	return "event_log"
}

func recordFromEntry(e models.LogEntry) EventRecord {
	return EventRecord{
		Timestamp:       e.Timestamp,
		CPU:             e.CPU,
		Memory:          e.Memory,
		Disk:            e.Disk,
		Anomaly:         e.Anomaly,
		AnomalyType:     e.AnomalyType,
		Severity:        e.Severity,
		TopAppName:      e.TopAppName,
		Explanation:     e.Explanation,
		ModelPrediction: e.ModelPrediction,
		ModelClass:      e.ModelClass,
	}
}

func (r EventRecord) entry() models.LogEntry {
	return models.LogEntry{
		Timestamp:       r.Timestamp,
		CPU:             r.CPU,
		Memory:          r.Memory,
		Disk:            r.Disk,
		Anomaly:         r.Anomaly,
		AnomalyType:     r.AnomalyType,
		Severity:        r.Severity,
		TopAppName:      r.TopAppName,
		Explanation:     r.Explanation,
		ModelPrediction: r.ModelPrediction,
		ModelClass:      r.ModelClass,
	}
}

// SQLiteStore keeps the log in a single SQLite table. Rows are only ever
// inserted.
type SQLiteStore struct {
	db *gorm.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}
	if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			sqlDB.Close()
		}
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// EnsureSchema migrates additively; existing rows are kept.
func (s *SQLiteStore) EnsureSchema() error {
	if err := s.db.AutoMigrate(&EventRecord{}); err != nil {
		return fmt.Errorf("failed to migrate event log: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Append(entry models.LogEntry) error {
	rec := recordFromEntry(entry)
	if err := s.db.Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to append entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Recent(limit int) ([]models.LogEntry, error) {
	q := s.db.Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var recs []EventRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to query event log: %w", err)
	}

	entries := make([]models.LogEntry, len(recs))
	for i, r := range recs {
		entries[len(recs)-1-i] = r.entry()
	}
	return entries, nil
}

func (s *SQLiteStore) Count() (int64, error) {
	var n int64
	err := s.db.Model(&EventRecord{}).Count(&n).Error
	return n, err
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
