package engine

import (
	"context"
	"sync/atomic"

	"github.com/chesschat/coach-backend/internal/platform/logger"
)

// SpawnFunc creates a fresh engine worker. Injected so tests can run the
// pool without real subprocesses.
type SpawnFunc func() (Handle, error)

// Pool owns a fixed number of engine slots. Each slot holds either a live
// handle or a vacancy; vacancies are filled by spawning on the next Acquire,
// so a crashed or timed-out engine costs nothing until it is needed again.
// Callers past capacity block on the slot channel in arrival order.
type Pool struct {
	size   int
	spawn  SpawnFunc
	log    *logger.Logger
	slots  chan Handle
	health *Health
	spawns atomic.Int64
	closed atomic.Bool
}

type PoolStats struct {
	Size     int   `json:"size"`
	Spawns   int64 `json:"spawns"`
	Timeouts int64 `json:"timeouts"`
	Crashes  int64 `json:"crashes"`
}

func NewPool(size int, spawn SpawnFunc, baseLog *logger.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{
		size:   size,
		spawn:  spawn,
		log:    baseLog.With("component", "EnginePool"),
		slots:  make(chan Handle, size),
		health: NewHealth(),
	}
	// All slots start vacant; subprocesses spawn on first use.
	for i := 0; i < size; i++ {
		p.slots <- nil
	}
	return p
}

// Acquire blocks until a slot frees up, then returns a live handle,
// spawning a replacement subprocess if the slot is vacant.
func (p *Pool) Acquire(ctx context.Context) (Handle, error) {
	if p.closed.Load() {
		return nil, ErrPoolClosed
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case h := <-p.slots:
		if h != nil && h.Healthy() {
			return h, nil
		}
		if h != nil {
			h.Close()
		}
		fresh, err := p.spawn()
		if err != nil {
			p.slots <- nil
			p.health.RecordCrash()
			return nil, err
		}
		p.spawns.Add(1)
		p.log.Debug("Spawned engine subprocess", "total_spawns", p.spawns.Load())
		return fresh, nil
	}
}

// Release returns a handle to its slot. A handle that timed out or crashed
// is closed and its slot left vacant; it must never be reused.
func (p *Pool) Release(h Handle) {
	if h == nil {
		p.slots <- nil
		return
	}
	if !h.Healthy() {
		h.Close()
		p.slots <- nil
		return
	}
	p.slots <- h
}

func (p *Pool) Health() *Health { return p.health }

func (p *Pool) Stats() PoolStats {
	snap := p.health.Snapshot()
	return PoolStats{
		Size:     p.size,
		Spawns:   p.spawns.Load(),
		Timeouts: snap.Timeouts,
		Crashes:  snap.Crashes,
	}
}

// Close drains every slot and shuts the subprocesses down.
func (p *Pool) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	for i := 0; i < p.size; i++ {
		if h := <-p.slots; h != nil {
			h.Close()
		}
	}
}
