package engine

import (
	"context"
	"testing"
	"time"

	"github.com/chesschat/coach-backend/internal/platform/logger"
)

type fakeHandle struct {
	healthy bool
	closed  bool
	result  *Result
	err     error
}

func (f *fakeHandle) Analyze(ctx context.Context, req Request) (*Result, error) {
	if f.err != nil {
		f.healthy = false
		return nil, f.err
	}
	res := *f.result
	res.FEN = req.FEN
	return &res, nil
}

func (f *fakeHandle) Healthy() bool { return f.healthy }
func (f *fakeHandle) Close()        { f.closed = true }

func newFakeSpawner() (*int, SpawnFunc) {
	count := 0
	return &count, func() (Handle, error) {
		count++
		return &fakeHandle{healthy: true, result: &Result{BestMove: "e2e4", ScoreCP: 20}}, nil
	}
}

func TestPoolSpawnsLazily(t *testing.T) {
	spawned, spawn := newFakeSpawner()
	p := NewPool(2, spawn, logger.NewNop())
	defer p.Close()

	if *spawned != 0 {
		t.Fatalf("pool must not spawn before first acquire, spawned=%d", *spawned)
	}
	h, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if *spawned != 1 {
		t.Fatalf("expected 1 spawn, got %d", *spawned)
	}
	p.Release(h)

	// A healthy handle is reused, not respawned.
	h2, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if *spawned != 1 {
		t.Fatalf("healthy handle should be reused, spawned=%d", *spawned)
	}
	p.Release(h2)
}

func TestPoolRespawnsAfterUnhealthyRelease(t *testing.T) {
	spawned, spawn := newFakeSpawner()
	p := NewPool(1, spawn, logger.NewNop())
	defer p.Close()

	h, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	fake := h.(*fakeHandle)
	fake.healthy = false
	p.Release(h)

	if !fake.closed {
		t.Fatalf("unhealthy handle must be closed on release")
	}

	h2, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire after discard: %v", err)
	}
	if h2 == h {
		t.Fatalf("discarded handle must never be reused")
	}
	if *spawned != 2 {
		t.Fatalf("expected a fresh spawn, got %d", *spawned)
	}
	if p.Stats().Spawns != 2 {
		t.Fatalf("stats spawns: got %d", p.Stats().Spawns)
	}
	p.Release(h2)
}

func TestPoolBlocksAtCapacity(t *testing.T) {
	_, spawn := newFakeSpawner()
	p := NewPool(1, spawn, logger.NewNop())
	defer p.Close()

	h, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := p.Acquire(ctx); err != context.DeadlineExceeded {
		t.Fatalf("expected deadline exceeded at capacity, got %v", err)
	}

	p.Release(h)
	h2, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	p.Release(h2)
}

func TestPoolClosed(t *testing.T) {
	_, spawn := newFakeSpawner()
	p := NewPool(1, spawn, logger.NewNop())
	p.Close()
	if _, err := p.Acquire(context.Background()); err != ErrPoolClosed {
		t.Fatalf("expected ErrPoolClosed, got %v", err)
	}
}

func TestHealthSnapshot(t *testing.T) {
	h := NewHealth()
	snap := h.Snapshot()
	if !snap.ColdStart {
		t.Fatalf("no samples should read as cold start")
	}

	for i := 0; i < 10; i++ {
		h.RecordLatency(100 * time.Millisecond)
	}
	snap = h.Snapshot()
	if snap.ColdStart {
		t.Fatalf("warmed engine still cold")
	}
	if !snap.Healthy {
		t.Fatalf("no failures should read healthy")
	}
	if snap.P90 != 100*time.Millisecond {
		t.Fatalf("p90: got %s", snap.P90)
	}

	h.RecordCrash()
	if h.Snapshot().Healthy {
		t.Fatalf("recent crash should read unhealthy")
	}
	if h.Snapshot().Crashes != 1 {
		t.Fatalf("crash count: got %d", h.Snapshot().Crashes)
	}
}
