// Package api composes the murmur HTTP API from its modules
package api

import (
	"murmur/internal/platform/cache"
	"murmur/internal/platform/config"
	"murmur/internal/platform/logger"
	"murmur/internal/platform/metrics"
	"murmur/internal/platform/net/middleware"
	phttp "murmur/internal/platform/net/http"
	"murmur/internal/platform/store"

	"murmur/internal/modkit"
	"murmur/internal/modkit/httpkit"
	"murmur/internal/modkit/module"
	"murmur/internal/modkit/swaggerkit"

	activitymod "murmur/internal/services/activity/module"
	metamod "murmur/internal/services/meta/module"
)

// ServiceName is reported by the meta endpoints
const ServiceName = "murmur-api"

// Options are the API options
type Options struct {
	// Config is the root config, modules add their own prefixes
	Config         config.Conf
	Store          *store.Store
	Logger         *logger.Logger
	EnableSwagger  bool
	EnableProfiler bool
	EnableMetrics  bool

	// ActivityHooks plug scope sources, visibility and prefetchers into the activity service
	ActivityHooks []activitymod.Hook
}

// Mount mounts the API onto r
func Mount(r phttp.Router, opt Options) {
	deps := modkit.Deps{
		Cfg: opt.Config,
		PG:  opt.Store.PG,
		CH:  opt.Store.CH,
	}
	if opt.Logger != nil {
		deps.Log = *opt.Logger
	}
	if opt.Store.RDS != nil {
		deps.Cache = cache.NewRedis(opt.Store.RDS, "murmur:")
	}

	mods := []module.Module{
		metamod.New(ServiceName, deps, opt.Store.RDS),
		activitymod.New(deps, opt.ActivityHooks),
	}

	apiCfg := opt.Config.Prefix("CORE_API_")
	stack := httpkit.CommonStack(httpkit.StackOptions{
		CORS: middleware.CORSOptions{AllowedOrigins: apiCfg.MayCSV("CORS_ORIGINS", []string{"*"})},
		Slow: apiCfg.MayDuration("SLOW_REQUEST", 0),
	})

	swaggerkit.Mount(r, opt.EnableSwagger)
	phttp.MountProfiler(r, "/debug", opt.EnableProfiler)
	if opt.EnableMetrics {
		r.Handle("/metrics", metrics.Handler())
	}

	httpkit.MountAPIV1(r, stack, func(api httpkit.Router) {
		for _, m := range mods {
			module.Register(m.Name(), m.Ports())
			m.MountRoutes(api)
		}
	})
}
