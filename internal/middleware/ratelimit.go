package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/olivmath/stealth-battleship-sub001/internal/logger"
)

// AttackLimiter throttles attack submissions per identity. Backed by
// redis SET NX so the limit holds across instances; falls back to an
// in-process map when redis is unreachable, which is fine for a single
// node and better than rejecting everyone.
type AttackLimiter struct {
	rdb      *redis.Client
	interval time.Duration

	mu    sync.Mutex
	local map[string]time.Time
}

// NewAttackLimiter connects to redis at addr; empty addr means local-only.
func NewAttackLimiter(addr string, interval time.Duration) *AttackLimiter {
	l := &AttackLimiter{
		interval: interval,
		local:    make(map[string]time.Time),
	}
	if addr != "" {
		l.rdb = redis.NewClient(&redis.Options{Addr: addr})
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := l.rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, attack limiter runs in-process", "addr", addr, "error", err)
			l.rdb = nil
		}
	}
	return l
}

// Allow reports whether the player may attack now, consuming the slot if
// so.
func (l *AttackLimiter) Allow(ctx context.Context, playerKey string) bool {
	if l.rdb != nil {
		ok, err := l.rdb.SetNX(ctx, "ratelimit:attack:"+playerKey, 1, l.interval).Result()
		if err == nil {
			return ok
		}
		logger.Warn("redis rate limit check failed, using local fallback", "error", err)
	}
	return l.allowLocal(playerKey)
}

func (l *AttackLimiter) allowLocal(playerKey string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if last, ok := l.local[playerKey]; ok && now.Sub(last) < l.interval {
		return false
	}
	l.local[playerKey] = now

	// opportunistic cleanup keeps the map from growing unbounded
	if len(l.local) > 10000 {
		for k, t := range l.local {
			if now.Sub(t) > l.interval {
				delete(l.local, k)
			}
		}
	}
	return true
}
