package engine

import (
	"sort"
	"sync"
	"time"
)

const (
	latencyWindow   = 64
	failureCooldown = 30 * time.Second
	coldStartMin    = 3
)

// Health aggregates recent engine behavior for admission control. The tier
// selector reads a snapshot of it before every game.
type Health struct {
	mu          sync.Mutex
	samples     [latencyWindow]time.Duration
	next        int
	count       int
	timeouts    int64
	crashes     int64
	lastFailure time.Time
}

// Snapshot is an immutable view handed to the tier selector.
type Snapshot struct {
	P90             time.Duration
	AvgPositionTime time.Duration
	Healthy         bool
	ColdStart       bool
	Timeouts        int64
	Crashes         int64
}

func NewHealth() *Health { return &Health{} }

func (h *Health) RecordLatency(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.samples[h.next] = d
	h.next = (h.next + 1) % latencyWindow
	if h.count < latencyWindow {
		h.count++
	}
}

func (h *Health) RecordTimeout() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.timeouts++
	h.lastFailure = time.Now()
}

func (h *Health) RecordCrash() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.crashes++
	h.lastFailure = time.Now()
}

func (h *Health) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	var p90, avg time.Duration
	if h.count > 0 {
		sorted := make([]time.Duration, h.count)
		copy(sorted, h.samples[:h.count])
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		idx := (9*h.count - 1) / 10
		if idx >= h.count {
			idx = h.count - 1
		}
		p90 = sorted[idx]
		var sum time.Duration
		for _, d := range sorted {
			sum += d
		}
		avg = sum / time.Duration(h.count)
	}

	return Snapshot{
		P90:             p90,
		AvgPositionTime: avg,
		Healthy:         h.lastFailure.IsZero() || time.Since(h.lastFailure) > failureCooldown,
		ColdStart:       h.count < coldStartMin,
		Timeouts:        h.timeouts,
		Crashes:         h.crashes,
	}
}
