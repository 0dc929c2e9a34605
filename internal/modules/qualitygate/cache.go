package qualitygate

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/stackmemory-backend/internal/platform/logger"
)

const probeCachePrefix = "stackmemory:probe:"

// CachedProber serves repeated probes of the same url from redis for ttl.
// Cache failures degrade to a live probe.
type CachedProber struct {
	next Prober
	rdb  *goredis.Client
	ttl  time.Duration
	log  *logger.Logger
}

func NewCachedProber(next Prober, rdb *goredis.Client, ttl time.Duration, baseLog *logger.Logger) Prober {
	if rdb == nil || ttl <= 0 {
		return next
	}
	return &CachedProber{next: next, rdb: rdb, ttl: ttl, log: baseLog.With("component", "ProbeCache")}
}

func (c *CachedProber) Probe(ctx context.Context, url string) ProbeResult {
	key := probeCachePrefix + url
	if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var cached ProbeResult
		if json.Unmarshal(raw, &cached) == nil {
			return cached
		}
	} else if err != goredis.Nil {
		c.log.Warn("probe cache read failed", "error", err)
	}

	res := c.next.Probe(ctx, url)
	// Only cache definite answers; timeouts and network errors are retried next time.
	if res.Accessible || res.StatusCode != 0 {
		if raw, err := json.Marshal(res); err == nil {
			if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
				c.log.Warn("probe cache write failed", "error", err)
			}
		}
	}
	return res
}
