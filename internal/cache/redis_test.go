package cache

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"anomaly-monitor/internal/models"
)

func getTestClient(t *testing.T) *RedisClient {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	prefix := fmt.Sprintf("monitor-test-%d", time.Now().UnixNano())
	c, err := NewRedisClient(ctx, addr, prefix)
	if err != nil {
		t.Skipf("skipping integration test (Redis not available): %v", err)
	}
	t.Cleanup(func() {
		keys, _ := c.client.Keys(context.Background(), prefix+":*").Result()
		if len(keys) > 0 {
			c.client.Del(context.Background(), keys...)
		}
		c.Close()
	})
	return c
}

func TestRedisClient_RecentEntries(t *testing.T) {
	c := getTestClient(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	for i := 0; i < 3; i++ {
		e := models.LogEntry{Timestamp: base.Add(time.Duration(i) * time.Second), CPU: float64(10 * i), ModelClass: "normal"}
		if err := c.StoreEntry(ctx, e); err != nil {
			t.Fatalf("store: %v", err)
		}
	}

	got, err := c.RecentEntries(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].CPU != 10 || got[1].CPU != 20 {
		t.Errorf("expected oldest-first [10 20], got [%v %v]", got[0].CPU, got[1].CPU)
	}
}

func TestRedisClient_Alerts(t *testing.T) {
	c := getTestClient(t)
	ctx := context.Background()

	if err := c.PushAlert(ctx, Alert{Kind: "port_scan", Address: "203.0.113.9", Hits: 11}); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := c.PushAlert(ctx, Alert{Kind: "new_address", Address: "10.1.1.1"}); err != nil {
		t.Fatalf("push: %v", err)
	}

	got, err := c.RecentAlerts(ctx, 10)
	if err != nil {
		t.Fatalf("alerts: %v", err)
	}
	if len(got) != 2 || got[0].Kind != "new_address" || got[1].Hits != 11 {
		t.Errorf("unexpected alerts %+v", got)
	}
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if _, err := NewRedisClient(ctx, "127.0.0.1:1", "x"); err == nil {
		t.Error("expected error for unreachable Redis")
	}
}
