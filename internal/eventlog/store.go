package eventlog

import (
	"fmt"

	"anomaly-monitor/internal/models"
)

const (
	KindCSV    = "csv"
	KindSQLite = "sqlite"
)

// Store is an append-only event log owned by one monitoring loop.
type Store interface {
	// EnsureSchema creates the store if absent and never truncates it.
	EnsureSchema() error
	Append(entry models.LogEntry) error
	// Recent returns up to limit of the newest entries, oldest first.
	Recent(limit int) ([]models.LogEntry, error)
	Close() error
}

var (
	_ Store = (*CSVStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)

// Open returns the store of the given kind and ensures its schema.
func Open(kind, path string) (Store, error) {
	var (
		s   Store
		err error
	)
	switch kind {
	case KindCSV, "":
		s = NewCSVStore(path)
	case KindSQLite:
		if s, err = NewSQLiteStore(path); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown store kind %q", kind)
	}

	if err := s.EnsureSchema(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
