package middleware

import (
    "sync"
    "time"

    "github.com/labstack/echo/v4"
    "golang.org/x/time/rate"

    "github.com/iliyamo/marketplace-ranking/internal/config"
)

// sweepAt is the bucket count above which idle buckets are dropped.
const sweepAt = 4096

type localEntry struct {
    lim  *rate.Limiter
    seen time.Time
}

// localBuckets is the per-process stand-in for the Redis script, used when
// no Redis server is configured.  Limits then apply per instance.
type localBuckets struct {
    mu      sync.Mutex
    entries map[string]*localEntry
    every   rate.Limit
    burst   int
    ttl     time.Duration
}

func newLocalBucket(cfg config.RateLimitConfig, now func() time.Time) echo.MiddlewareFunc {
    b := &localBuckets{
        entries: make(map[string]*localEntry),
        every:   rate.Limit(float64(cfg.RefillTokens) / cfg.RefillInterval.Seconds()),
        burst:   cfg.Capacity,
        ttl:     cfg.TTL,
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            key := buildRateKey(cfg, c)
            allowed, remaining, retry := b.take(key, now())
            return respond(c, cfg, key, allowed, remaining, retry.Milliseconds(), next)
        }
    }
}

// take consumes one token for key at t.  It reports the tokens left and,
// when refused, how long until the next token.
func (b *localBuckets) take(key string, t time.Time) (bool, int64, time.Duration) {
    b.mu.Lock()
    defer b.mu.Unlock()

    if len(b.entries) > sweepAt {
        for k, e := range b.entries {
            if t.Sub(e.seen) > b.ttl {
                delete(b.entries, k)
            }
        }
    }
    e, ok := b.entries[key]
    if !ok {
        e = &localEntry{lim: rate.NewLimiter(b.every, b.burst)}
        b.entries[key] = e
    }
    e.seen = t

    r := e.lim.ReserveN(t, 1)
    if delay := r.DelayFrom(t); delay > 0 {
        r.CancelAt(t)
        return false, 0, delay
    }
    left := int64(e.lim.TokensAt(t))
    if left < 0 {
        left = 0
    }
    return true, left, 0
}
