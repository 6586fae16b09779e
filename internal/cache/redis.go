package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"anomaly-monitor/internal/models"

	"github.com/go-redis/redis/v8"
)

const (
	entryTTL     = time.Hour
	maxRecent    = 1000
	maxAlerts    = 500
	alertsSuffix = "alerts"
)

// RedisClient mirrors recent log entries and detector alerts so the status
// API can serve them without reading the durable store.
type RedisClient struct {
	client *redis.Client
	prefix string
}

func NewRedisClient(ctx context.Context, addr, prefix string) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		PoolSize:     10,
		MinIdleConns: 1,
		MaxRetries:   3,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	if prefix == "" {
		prefix = "monitor"
	}
	return &RedisClient{client: client, prefix: prefix}, nil
}

func (r *RedisClient) recentKey() string {
	return r.prefix + ":recent"
}

func (r *RedisClient) alertsKey() string {
	return r.prefix + ":" + alertsSuffix
}

// StoreEntry saves one entry under its own key and pushes the key onto the
// bounded recent list.
func (r *RedisClient) StoreEntry(ctx context.Context, entry models.LogEntry) error {
	key := fmt.Sprintf("%s:entry:%d", r.prefix, entry.Timestamp.UnixNano())

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, key, data, entryTTL)
	pipe.LPush(ctx, r.recentKey(), key)
	pipe.LTrim(ctx, r.recentKey(), 0, maxRecent-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store entry in Redis: %w", err)
	}
	return nil
}

// RecentEntries returns up to count entries, oldest first. Expired keys are
// skipped.
func (r *RedisClient) RecentEntries(ctx context.Context, count int64) ([]models.LogEntry, error) {
	keys, err := r.client.LRange(ctx, r.recentKey(), 0, count-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get recent entry keys: %w", err)
	}

	entries := make([]models.LogEntry, 0, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		data, err := r.client.Get(ctx, keys[i]).Result()
		if err != nil {
			continue
		}

		var e models.LogEntry
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Alert is a detector finding that does not fit the log schema.
type Alert struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
	Address   string    `json:"address"`
	Hits      int       `json:"hits,omitempty"`
}

func (r *RedisClient) PushAlert(ctx context.Context, alert Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, r.alertsKey(), data)
	pipe.LTrim(ctx, r.alertsKey(), 0, maxAlerts-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to push alert: %w", err)
	}
	return nil
}

// RecentAlerts returns up to count alerts, newest first.
func (r *RedisClient) RecentAlerts(ctx context.Context, count int64) ([]Alert, error) {
	raw, err := r.client.LRange(ctx, r.alertsKey(), 0, count-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get alerts: %w", err)
	}

	alerts := make([]Alert, 0, len(raw))
	for _, s := range raw {
		var a Alert
		if err := json.Unmarshal([]byte(s), &a); err != nil {
			continue
		}
		alerts = append(alerts, a)
	}
	return alerts, nil
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}
