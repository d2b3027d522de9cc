// Package module wires meta endpoints into the API
package module

import (
	"context"
	"time"

	modkit "murmur/internal/modkit"
	phttp "murmur/internal/platform/net/http"
	str "murmur/internal/platform/strings"
	metahttp "murmur/internal/services/meta/http"

	"github.com/redis/go-redis/v9"
)

// Module implements module.Module for meta
type Module struct {
	b    modkit.Built
	deps metahttp.Deps
}

// New constructs the meta module, rdb may be nil when redis is not configured
func New(service string, deps modkit.Deps, rdb *redis.Client, opts ...modkit.Option) *Module {
	b := modkit.Build([]modkit.Option{modkit.WithName("meta"), modkit.WithPrefix("/meta")}, opts...)

	d := metahttp.Deps{ServiceName: service, StartedAt: time.Now()}
	d.Checks = append(d.Checks, metahttp.Check{Name: "pg", Pinger: pinger(deps.PG)})
	// a nil interface must stay nil so the check reports skipped
	if deps.CH != nil {
		d.Checks = append(d.Checks, metahttp.Check{Name: "ch", Pinger: deps.CH})
	} else {
		d.Checks = append(d.Checks, metahttp.Check{Name: "ch"})
	}
	rc := metahttp.Check{Name: "redis"}
	if rdb != nil {
		rc.Pinger = metahttp.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}
	d.Checks = append(d.Checks, rc)

	return &Module{b: b, deps: d}
}

func pinger(v any) metahttp.Pinger {
	if p, ok := v.(metahttp.Pinger); ok && p != nil {
		return p
	}
	return nil
}

// MountRoutes implements module.Module
func (m *Module) MountRoutes(r phttp.Router) {
	m.b.Mount(r, func(rr phttp.Router) { metahttp.Register(rr, m.deps) })
}

// Name implements module.Module
func (m *Module) Name() string { return str.MustString(m.b.Name, "module name") }

// Ports implements module.Module
func (m *Module) Ports() any { return nil }
