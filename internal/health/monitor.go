// Package health probes both inference backends and decides which one
// should serve the next request.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Backend names used across the orchestrator and the API.
const (
	BackendInstance   = "instance"
	BackendServerless = "serverless"
)

// ModeDegraded is reported by the instance service when inference runs
// without GPU acceleration; the backend stays usable but loses preference.
const ModeDegraded = "degraded"

// ProbeResult is what a backend reports about itself.
type ProbeResult struct {
	Available bool
	Mode      string
}

// Prober performs one bounded-timeout health check.
type Prober interface {
	Probe(ctx context.Context) (ProbeResult, error)
}

// Entry is the recorded health of one backend.
type Entry struct {
	Name                string
	Available           bool
	Mode                string
	LatencyMs           int64
	HasLatency          bool
	LastChecked         time.Time
	ConsecutiveFailures int
}

// Monitor tracks backend health. Entries older than the freshness window
// are treated as unknown, never as healthy.
type Monitor struct {
	mu      sync.Mutex
	probers map[string]Prober
	order   []string
	entries map[string]Entry

	ttl          time.Duration
	probeTimeout time.Duration
	log          zerolog.Logger
}

// NewMonitor creates a monitor with the given freshness window and
// per-probe timeout.
func NewMonitor(ttl, probeTimeout time.Duration, log zerolog.Logger) *Monitor {
	return &Monitor{
		probers:      make(map[string]Prober),
		entries:      make(map[string]Entry),
		ttl:          ttl,
		probeTimeout: probeTimeout,
		log:          log.With().Str("component", "health").Logger(),
	}
}

// Register adds a backend. Registration order is preserved in snapshots.
func (m *Monitor) Register(name string, p Prober) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.probers[name]; !ok {
		m.order = append(m.order, name)
	}
	m.probers[name] = p
	m.entries[name] = Entry{Name: name}
}

// Check probes one backend now and records the result.
func (m *Monitor) Check(ctx context.Context, name string) Entry {
	m.mu.Lock()
	p, ok := m.probers[name]
	prev := m.entries[name]
	m.mu.Unlock()
	if !ok {
		return Entry{Name: name}
	}

	pctx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	start := time.Now()
	res, err := p.Probe(pctx)
	latency := time.Since(start)
	cancel()

	e := Entry{Name: name, LastChecked: time.Now()}
	if err != nil {
		e.ConsecutiveFailures = prev.ConsecutiveFailures + 1
		m.log.Debug().Str("backend", name).Int("failures", e.ConsecutiveFailures).Err(err).Msg("health probe failed")
		probeFailures.WithLabelValues(name).Inc()
	} else {
		e.Available = res.Available
		e.Mode = res.Mode
		e.LatencyMs = latency.Milliseconds()
		e.HasLatency = true
	}

	m.mu.Lock()
	m.entries[name] = e
	m.mu.Unlock()
	observeEntry(e)
	return e
}

// CheckAll probes every registered backend and returns the fresh entries.
func (m *Monitor) CheckAll(ctx context.Context) []Entry {
	m.mu.Lock()
	names := append([]string(nil), m.order...)
	m.mu.Unlock()
	out := make([]Entry, 0, len(names))
	for _, n := range names {
		out = append(out, m.Check(ctx, n))
	}
	return out
}

// Refresh re-probes a backend only when its entry has gone stale, and
// returns the current entry either way.
func (m *Monitor) Refresh(ctx context.Context, name string) Entry {
	m.mu.Lock()
	e, ok := m.entries[name]
	fresh := ok && time.Since(e.LastChecked) < m.ttl
	m.mu.Unlock()
	if fresh {
		return e
	}
	return m.Check(ctx, name)
}

// Entry returns the recorded entry without probing.
func (m *Monitor) Entry(name string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[name]
	return e, ok
}

// Snapshot returns all recorded entries in registration order.
func (m *Monitor) Snapshot() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, 0, len(m.order))
	for _, n := range m.order {
		out = append(out, m.entries[n])
	}
	return out
}

// IsAvailable is true only when the most recent check succeeded within the
// freshness window. Unchecked or stale backends count as unavailable.
func (m *Monitor) IsAvailable(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[name]
	if !ok || !e.Available {
		return false
	}
	return time.Since(e.LastChecked) < m.ttl
}

// Preferred picks the backend for the next inference request. The
// self-managed instance wins when it is ready and healthy at full capacity;
// the serverless backend is the fallback whenever the instance is stopped,
// starting, degraded, or unhealthy. Empty means nothing can serve.
func (m *Monitor) Preferred(instanceReady bool) string {
	instOK := instanceReady && m.IsAvailable(BackendInstance)
	servOK := m.IsAvailable(BackendServerless)

	if instOK {
		e, _ := m.Entry(BackendInstance)
		if e.Mode != ModeDegraded {
			return BackendInstance
		}
		if servOK {
			return BackendServerless
		}
		return BackendInstance
	}
	if servOK {
		return BackendServerless
	}
	return ""
}
