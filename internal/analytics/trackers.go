package analytics

import (
	"net"
	"sort"
	"strings"

	"anomaly-monitor/internal/models"
)

// DefaultPortScanThreshold is the hit count a remote address must exceed.
const DefaultPortScanThreshold = 10

// AddressTracker remembers every local IPv4 address seen during the
// lifetime of the process. Not safe for concurrent use.
type AddressTracker struct {
	seen map[string]struct{}
}

func NewAddressTracker() *AddressTracker {
	return &AddressTracker{seen: make(map[string]struct{})}
}

// Observe returns the addresses not reported before, in input order, and
// adds them to the tracked set.
func (t *AddressTracker) Observe(addrs []string) []string {
	var fresh []string
	for _, raw := range addrs {
		ip, ok := normalizeIPv4(raw)
		if !ok {
			continue
		}
		if _, seen := t.seen[ip]; seen {
			continue
		}
		t.seen[ip] = struct{}{}
		fresh = append(fresh, ip)
	}
	return fresh
}

func (t *AddressTracker) Len() int {
	return len(t.seen)
}

// normalizeIPv4 strips an optional CIDR suffix and rejects non-IPv4 input.
func normalizeIPv4(raw string) (string, bool) {
	host := strings.TrimSpace(raw)
	if i := strings.IndexByte(host, '/'); i >= 0 {
		host = host[:i]
	}
	ip := net.ParseIP(host)
	if ip == nil || ip.To4() == nil {
		return "", false
	}
	return ip.String(), true
}

// PortScanTracker counts connection observations per remote address across
// ticks. Counters are cumulative and only reset when they cross the
// threshold. Not safe for concurrent use.
type PortScanTracker struct {
	threshold int
	hits      map[string]int
}

func NewPortScanTracker(threshold int) *PortScanTracker {
	if threshold <= 0 {
		threshold = DefaultPortScanThreshold
	}
	return &PortScanTracker{
		threshold: threshold,
		hits:      make(map[string]int),
	}
}

// Observe adds one hit per connection with a remote endpoint, then returns
// an alert for every address whose count exceeds the threshold and deletes
// its counter. Alerts are sorted by address.
func (t *PortScanTracker) Observe(conns []models.Connection) []models.ScanAlert {
	for _, c := range conns {
		if c.RemoteIP == "" {
			continue
		}
		t.hits[c.RemoteIP]++
	}

	var alerts []models.ScanAlert
	for addr, count := range t.hits {
		if count > t.threshold {
			alerts = append(alerts, models.ScanAlert{Address: addr, Hits: count})
			delete(t.hits, addr)
		}
	}
	sort.Slice(alerts, func(i, j int) bool { return alerts[i].Address < alerts[j].Address })
	return alerts
}

// Count returns the current counter for addr, 0 when absent.
func (t *PortScanTracker) Count(addr string) int {
	return t.hits[addr]
}

func (t *PortScanTracker) Tracked(addr string) bool {
	_, ok := t.hits[addr]
	return ok
}

func (t *PortScanTracker) Threshold() int {
	return t.threshold
}
