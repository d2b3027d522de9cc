package store

import (
	"context"
	"fmt"
	"time"

	chx "murmur/internal/platform/store/ch"
	"murmur/internal/platform/store/pg"
	"murmur/internal/platform/store/rds"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const (
	backoffStart   = 150 * time.Millisecond
	backoffCeiling = 2 * time.Second
)

// openPG opens the pool, waits until it answers a ping, then wraps it in the sql adapter
func openPG(ctx context.Context, cfg Config, s *Store) (TxRunner, error) {
	var tracer pg.QueryTracer
	if cfg.PG.LogSQL {
		tracer = pg.Tracer(s.Log)
	}

	p, err := pg.Open(ctx, pg.Config{
		URL:      cfg.PG.URL,
		AppName:  appName(cfg),
		MaxConns: cfg.PG.MaxConns,
		SlowMs:   cfg.PG.SlowQueryMs,
	}, tracer, func(pc *pgxpool.Config) {
		if s.poolMut != nil {
			s.poolMut(pc)
		}
	})
	if err != nil {
		return nil, err
	}

	attempts := cfg.PG.ConnectRetries
	if attempts <= 0 {
		attempts = 20
	}
	timeout := cfg.PG.PingTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	// ping the pool directly so boot attempts do not show up as traced queries
	err = retry(ctx, attempts, func() error {
		toCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return p.Pool.Ping(toCtx)
	})
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return newPGAdapter(p), nil
}

func openCH(ctx context.Context, cfg Config) (Archive, error) {
	return chx.Open(ctx, chx.Config{URL: cfg.CH.URL, AppName: appName(cfg), Role: cfg.Role})
}

func openRDS(ctx context.Context, cfg Config) (*redis.Client, error) {
	return rds.Open(ctx, rds.Config{URL: cfg.RDS.URL, ClientName: appName(cfg)})
}

func appName(cfg Config) string {
	name := cfg.AppName
	if name == "" {
		name = "murmur"
	}
	if cfg.Role != "" {
		name += "-" + cfg.Role
	}
	return name
}

// retry runs fn until it succeeds, ctx ends or attempts run out, doubling the pause up to a ceiling
func retry(ctx context.Context, attempts int, fn func() error) error {
	var last error
	backoff := backoffStart
	for i := 0; i < attempts; i++ {
		if last = fn(); last == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, backoffCeiling)
	}
	return fmt.Errorf("gave up after %d attempts: %w", attempts, last)
}
