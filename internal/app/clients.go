package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/stackmemory-backend/internal/modules/qualitygate"
	"github.com/yungbote/stackmemory-backend/internal/platform/llm"
	"github.com/yungbote/stackmemory-backend/internal/platform/logger"
	"github.com/yungbote/stackmemory-backend/internal/platform/scraper"
)

type Clients struct {
	LLM     llm.Client
	Scraper scraper.Scraper
	Prober  qualitygate.Prober
	Redis   *goredis.Client
	Pool    *pgxpool.Pool
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	// Redis (optional probe cache)
	var rdb *goredis.Client
	if cfg.RedisAddr != "" {
		rdb = goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Warn("redis unreachable, probe cache disabled", "addr", cfg.RedisAddr, "error", err)
			_ = rdb.Close()
			rdb = nil
		}
	}

	// Hosted store pool
	var pool *pgxpool.Pool
	if cfg.HostedDatabaseURL != "" {
		p, err := pgxpool.New(ctx, cfg.HostedDatabaseURL)
		if err != nil {
			if rdb != nil {
				_ = rdb.Close()
			}
			return Clients{}, fmt.Errorf("init hosted pool: %w", err)
		}
		pool = p
	}

	prober := qualitygate.NewCachedProber(qualitygate.NewHTTPProber(cfg.ProbeTimeout), rdb, cfg.ProbeCacheTTL, log)

	return Clients{
		LLM:     llm.New(cfg.LLM, log),
		Scraper: scraper.New(scraper.DefaultTimeout, log),
		Prober:  prober,
		Redis:   rdb,
		Pool:    pool,
	}, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
