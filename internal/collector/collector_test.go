package collector

import (
	"context"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/net"
)

func TestConvertConnections(t *testing.T) {
	in := []net.ConnectionStat{
		{Laddr: net.Addr{IP: "10.0.0.5", Port: 443}, Raddr: net.Addr{IP: "198.51.100.7", Port: 51234}, Status: "ESTABLISHED"},
		{Laddr: net.Addr{IP: "0.0.0.0", Port: 22}, Status: "LISTEN"},
	}

	got := convertConnections(in)
	if len(got) != 2 {
		t.Fatalf("expected 2 connections, got %d", len(got))
	}
	if got[0].RemoteIP != "198.51.100.7" || got[0].RemotePort != 51234 || got[0].LocalPort != 443 {
		t.Errorf("unexpected conversion %+v", got[0])
	}
	if got[1].RemoteIP != "" || got[1].Status != "LISTEN" {
		t.Errorf("listening socket should have no remote endpoint, got %+v", got[1])
	}
}

func TestMemoryPercent(t *testing.T) {
	cases := []struct {
		rss, total uint64
		want       float64
	}{
		{rss: 512 << 20, total: 2 << 30, want: 25},
		{rss: 0, total: 2 << 30, want: 0},
		{rss: 1 << 20, total: 0, want: 0},
	}
	for _, c := range cases {
		if got := memoryPercent(c.rss, c.total); got != c.want {
			t.Errorf("memoryPercent(%d, %d) = %v, want %v", c.rss, c.total, got, c.want)
		}
	}
}

func TestHostProvider_Snapshot(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping host sampling in short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := NewHostProvider(100 * time.Millisecond).Snapshot(ctx)
	if err != nil {
		t.Skipf("host metrics unavailable: %v", err)
	}
	for name, v := range map[string]float64{"cpu": s.CPUPercent, "memory": s.MemoryPercent, "disk": s.DiskPercent} {
		if v < 0 || v > 100 {
			t.Errorf("%s percent out of range: %v", name, v)
		}
	}
	for _, p := range s.Processes {
		if p.MemoryPercent < 0 || p.MemoryPercent > 100 {
			t.Errorf("%s memory percent out of range: %v", p.Name, p.MemoryPercent)
		}
	}
}
