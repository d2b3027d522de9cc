// Package module wires the activity service into the API using modkit
package module

import (
	"context"

	modkit "murmur/internal/modkit"
	"murmur/internal/modkit/repokit"
	"murmur/internal/platform/cache"
	"murmur/internal/platform/logger"
	phttp "murmur/internal/platform/net/http"
	str "murmur/internal/platform/strings"
	ahttp "murmur/internal/services/activity/http"
	arepo "murmur/internal/services/activity/repo"
	asvc "murmur/internal/services/activity/service"
)

// Name is the registry key of the activity port set
const Name = "activity"

// Module implements module.Module for activity
type Module struct {
	b     modkit.Built
	svc   *asvc.Service
	ports Ports
}

// Hook adjusts service deps before construction, for scope sources, visibility and the like
type Hook func(*asvc.Deps)

// New constructs the activity module, deps.PG is required
func New(deps modkit.Deps, hooks []Hook, opts ...modkit.Option) *Module {
	b := modkit.Build([]modkit.Option{modkit.WithName(Name), modkit.WithPrefix("/activity")}, opts...)
	o := FromConfig(deps.Cfg)
	log := logger.Named("activity")

	if o.AutoMigrate {
		if err := arepo.EnsureSchema(context.Background(), repokit.RequireQueryer(deps.PG)); err != nil {
			log.Fatal().Err(err).Msg("activity schema")
		}
	}

	c := deps.Cache
	if c == nil {
		c = cache.NewMemory()
	}

	d := asvc.Deps{
		DB:      deps.PG,
		Binder:  arepo.NewPG(),
		Cache:   cache.Observed(c),
		Scopes:  asvc.NewScopes(asvc.ScopeSources{}),
		Users:   arepo.NewUsers(deps.PG),
		Actions: asvc.NewActions(),
	}
	if a := arepo.NewArchive(deps.CH); a != nil {
		d.Archive = a
	}
	for _, h := range hooks {
		h(&d)
	}

	svc := asvc.New(d, o.Service)
	m := &Module{
		b:     b,
		svc:   svc,
		ports: Ports{Read: svc, Write: svc, Rebuilder: svc},
	}
	log.Info().Str("error_mode", o.Service.ErrorMode).Bool("archive", d.Archive != nil).Msg("activity module ready")
	return m
}

// MountRoutes implements module.Module
func (m *Module) MountRoutes(r phttp.Router) {
	m.b.Mount(r, func(rr phttp.Router) { ahttp.Register(rr, m.ports.Read, m.ports.Write) })
}

// Name implements module.Module
func (m *Module) Name() string { return str.MustString(m.b.Name, "module name") }

// Ports implements module.Module
func (m *Module) Ports() any { return m.ports }

// Service exposes the concrete service for in-process callers such as the rebuild CLI
func (m *Module) Service() *asvc.Service { return m.svc }
