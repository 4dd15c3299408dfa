package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/chesschat/coach-backend/internal/engine"
	"github.com/chesschat/coach-backend/internal/platform/logger"
	"github.com/chesschat/coach-backend/internal/utils"
)

// Redis is the shared analysis cache for multi-instance deployments. TTL
// expiry is native; Prune is a no-op. Redis failures degrade to cache
// misses, never to caller-visible errors.
type Redis struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
	hits   atomic.Int64
	misses atomic.Int64
}

func NewRedis(baseLog *logger.Logger) (*Redis, error) {
	log := baseLog.With("component", "RedisEvalCache")

	addr := strings.TrimSpace(utils.GetEnv("REDIS_ADDR", "", log))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	prefix := strings.TrimSpace(utils.GetEnv("REDIS_EVAL_PREFIX", "eval", log))

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Redis{log: log, rdb: rdb, prefix: prefix}, nil
}

func (r *Redis) key(fen string, depth int) string {
	return r.prefix + ":" + Key(fen, depth)
}

func (r *Redis) Get(ctx context.Context, fen string, depth int) (*engine.Result, bool) {
	raw, err := r.rdb.Get(ctx, r.key(fen, depth)).Bytes()
	if err != nil {
		if err != goredis.Nil {
			r.log.Warn("Redis get failed, treating as miss", "error", err)
		}
		r.misses.Add(1)
		return nil, false
	}
	var res engine.Result
	if err := json.Unmarshal(raw, &res); err != nil {
		r.log.Warn("Corrupt cache entry, treating as miss", "error", err)
		r.misses.Add(1)
		return nil, false
	}
	r.hits.Add(1)
	return &res, true
}

func (r *Redis) Put(ctx context.Context, fen string, depth int, res *engine.Result, ttl time.Duration) {
	if res == nil || ttl <= 0 {
		return
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := r.rdb.Set(ctx, r.key(fen, depth), raw, ttl).Err(); err != nil {
		r.log.Warn("Redis put failed", "error", err)
	}
}

func (r *Redis) Prune(context.Context) int { return 0 }

func (r *Redis) Stats() Stats {
	hits := r.hits.Load()
	misses := r.misses.Load()
	var rate float64
	if hits+misses > 0 {
		rate = float64(hits) / float64(hits+misses)
	}
	return Stats{Hits: hits, Misses: misses, HitRate: rate}
}

func (r *Redis) Close() error { return r.rdb.Close() }
