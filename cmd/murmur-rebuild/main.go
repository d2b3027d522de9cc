// murmur-rebuild renumbers comment trees out of band
//
//	murmur-rebuild -activity 42
//	murmur-rebuild -all
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"murmur/internal/modkit"
	"murmur/internal/platform/cache"
	"murmur/internal/platform/config"
	"murmur/internal/platform/logger"
	"murmur/internal/platform/store"

	activitymod "murmur/internal/services/activity/module"

	"github.com/google/uuid"
)

func main() {
	var (
		fActivity = flag.Int64("activity", 0, "top-level activity id whose tree is rebuilt")
		fAll      = flag.Bool("all", false, "rebuild every tree that has comments")
	)
	flag.Parse()
	if (*fActivity > 0) == *fAll {
		fmt.Fprintln(os.Stderr, "exactly one of -activity or -all is required")
		flag.Usage()
		os.Exit(2)
	}

	logger.Init(logger.FromEnv())
	runID := uuid.NewString()
	l := logger.Get().With().Str("run_id", runID).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := config.New()
	st, err := store.Open(ctx, store.ConfigFromEnv(root, "rebuild"), store.WithLogger(l))
	if err != nil {
		l.Fatal().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	deps := modkit.Deps{Log: l, Cfg: root, PG: st.PG, CH: st.CH}
	// the api caches trees, so a shared cache must see the invalidations
	if st.RDS != nil {
		deps.Cache = cache.NewRedis(st.RDS, "murmur:")
	}
	rb := activitymod.New(deps, nil).Ports().(activitymod.Ports).Rebuilder

	start := time.Now()
	if *fActivity > 0 {
		if err := rb.RebuildTree(ctx, *fActivity); err != nil {
			l.Fatal().Err(err).Int64("activity_id", *fActivity).Msg("rebuild failed")
		}
		l.Info().Int64("activity_id", *fActivity).Dur("took", time.Since(start)).Msg("tree rebuilt")
		return
	}

	failed := 0
	done, err := rb.RebuildAll(ctx, func(top int64, err error) {
		if err != nil {
			failed++
			l.Error().Err(err).Int64("activity_id", top).Msg("tree rebuild failed")
			return
		}
		l.Debug().Int64("activity_id", top).Msg("tree rebuilt")
	})
	ev := l.Info()
	if err != nil || failed > 0 {
		ev = l.Error().Err(err)
	}
	ev.Int("rebuilt", done).Int("failed", failed).Dur("took", time.Since(start)).Msg("rebuild finished")
	if err != nil || failed > 0 {
		os.Exit(1)
	}
}
