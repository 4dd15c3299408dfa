package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chesschat/coach-backend/internal/board"
	"github.com/chesschat/coach-backend/internal/engine"
)

// Store maps a normalized position and requested depth to a prior
// evaluation. A shallower cached result never satisfies a deeper request:
// depth is part of the key. Entries expire by fixed TTL only; there is no
// size-bounded eviction.
type Store interface {
	Get(ctx context.Context, fen string, depth int) (*engine.Result, bool)
	Put(ctx context.Context, fen string, depth int, res *engine.Result, ttl time.Duration)
	Prune(ctx context.Context) int
	Stats() Stats
}

// Stats are diagnostic only; they never drive eviction.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Entries int     `json:"entries"`
	HitRate float64 `json:"hit_rate"`
}

// Key builds the cache key: FEN with move-clock fields stripped, plus the
// requested depth.
func Key(fen string, depth int) string {
	return fmt.Sprintf("%s|d%d", board.NormalizedKey(fen), depth)
}

type memoryEntry struct {
	result    engine.Result
	expiresAt time.Time
}

// Memory is the default in-process TTL store. Expired entries are dropped
// lazily on read and in bulk by Prune.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	hits    atomic.Int64
	misses  atomic.Int64
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry)}
}

func (m *Memory) Get(_ context.Context, fen string, depth int) (*engine.Result, bool) {
	key := Key(fen, depth)
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		m.misses.Add(1)
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		m.mu.Lock()
		if cur, still := m.entries[key]; still && time.Now().After(cur.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		m.misses.Add(1)
		return nil, false
	}
	m.hits.Add(1)
	res := e.result
	return &res, true
}

// Put overwrites any existing entry for the same key.
func (m *Memory) Put(_ context.Context, fen string, depth int, res *engine.Result, ttl time.Duration) {
	if res == nil || ttl <= 0 {
		return
	}
	m.mu.Lock()
	m.entries[Key(fen, depth)] = memoryEntry{result: *res, expiresAt: time.Now().Add(ttl)}
	m.mu.Unlock()
}

func (m *Memory) Prune(_ context.Context) int {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for k, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, k)
			removed++
		}
	}
	return removed
}

func (m *Memory) Stats() Stats {
	m.mu.RLock()
	entries := len(m.entries)
	m.mu.RUnlock()
	hits := m.hits.Load()
	misses := m.misses.Load()
	var rate float64
	if hits+misses > 0 {
		rate = float64(hits) / float64(hits+misses)
	}
	return Stats{Hits: hits, Misses: misses, Entries: entries, HitRate: rate}
}
