package collector

import (
	"context"
	"fmt"
	"time"

	"anomaly-monitor/internal/models"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

// Provider supplies the host state sampled on every tick.
type Provider interface {
	Snapshot(ctx context.Context) (models.MetricsSnapshot, error)
	InterfaceAddresses(ctx context.Context) ([]string, error)
	Connections(ctx context.Context) ([]models.Connection, error)
}

// HostProvider reads the local machine through gopsutil.
type HostProvider struct {
	// CPUWindow is how long CPU usage is measured for. Zero compares
	// against the previous call.
	CPUWindow time.Duration
	DiskPath  string
}

func NewHostProvider(cpuWindow time.Duration) *HostProvider {
	return &HostProvider{CPUWindow: cpuWindow, DiskPath: "/"}
}

func (h *HostProvider) Snapshot(ctx context.Context) (models.MetricsSnapshot, error) {
	var s models.MetricsSnapshot

	percent, err := cpu.PercentWithContext(ctx, h.CPUWindow, false)
	if err != nil {
		return s, fmt.Errorf("failed to get cpu usage: %w", err)
	}
	if len(percent) > 0 {
		s.CPUPercent = percent[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return s, fmt.Errorf("failed to get memory usage: %w", err)
	}
	s.MemoryPercent = vm.UsedPercent

	usage, err := disk.UsageWithContext(ctx, h.DiskPath)
	if err != nil {
		return s, fmt.Errorf("failed to get disk usage: %w", err)
	}
	s.DiskPercent = usage.UsedPercent

	procs, err := h.processes(ctx, vm.Total)
	if err != nil {
		return s, err
	}
	s.Processes = procs
	return s, nil
}

// processes lists per-process usage. Processes that exit while being read
// are skipped.
func (h *HostProvider) processes(ctx context.Context, memTotal uint64) ([]models.ProcessUsage, error) {
	all, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get processes: %w", err)
	}

	out := make([]models.ProcessUsage, 0, len(all))
	for _, p := range all {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		cpuPercent, _ := p.CPUPercentWithContext(ctx)
		usage := models.ProcessUsage{Name: name, CPUPercent: cpuPercent}
		if info, err := p.MemoryInfoWithContext(ctx); err == nil {
			usage.MemoryPercent = memoryPercent(info.RSS, memTotal)
		}
		out = append(out, usage)
	}
	return out, nil
}

// memoryPercent is rss as a share of total physical memory.
func memoryPercent(rss, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return 100 * float64(rss) / float64(total)
}

func (h *HostProvider) InterfaceAddresses(ctx context.Context) ([]string, error) {
	ifaces, err := net.InterfacesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get network interfaces: %w", err)
	}

	var addrs []string
	for _, iface := range ifaces {
		for _, a := range iface.Addrs {
			addrs = append(addrs, a.Addr)
		}
	}
	return addrs, nil
}

func (h *HostProvider) Connections(ctx context.Context) ([]models.Connection, error) {
	conns, err := net.ConnectionsWithContext(ctx, "inet")
	if err != nil {
		return nil, fmt.Errorf("failed to get connections: %w", err)
	}
	return convertConnections(conns), nil
}

func convertConnections(conns []net.ConnectionStat) []models.Connection {
	out := make([]models.Connection, 0, len(conns))
	for _, c := range conns {
		out = append(out, models.Connection{
			LocalIP:    c.Laddr.IP,
			LocalPort:  c.Laddr.Port,
			RemoteIP:   c.Raddr.IP,
			RemotePort: c.Raddr.Port,
			Status:     c.Status,
		})
	}
	return out
}
