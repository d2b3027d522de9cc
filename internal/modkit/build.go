package modkit

import (
	"net/http"

	phttp "murmur/internal/platform/net/http"
	str "murmur/internal/platform/strings"
)

// Option adjusts how a module is built
type Option func(*Built)

// Built is the resolved build configuration a module constructor reads
type Built struct {
	Name   string
	Prefix string
	Mw     []func(http.Handler) http.Handler
	// Register runs after the module's own routes, for extra endpoints
	Register func(phttp.Router)
}

// Build applies defaults then opts, later options win
func Build(defaults []Option, opts ...Option) Built {
	var b Built
	for _, o := range defaults {
		o(&b)
	}
	for _, o := range opts {
		o(&b)
	}
	if b.Register == nil {
		b.Register = func(phttp.Router) {}
	}
	return b
}

// WithName sets the module name used in logs and the port registry
func WithName(name string) Option { return func(b *Built) { b.Name = name } }

// WithPrefix mounts the module under a path prefix
func WithPrefix(prefix string) Option { return func(b *Built) { b.Prefix = prefix } }

// WithMiddlewares appends per module middleware in order
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(b *Built) { b.Mw = append(b.Mw, mw...) }
}

// WithRegister attaches extra endpoints to the module router
func WithRegister(fn func(phttp.Router)) Option { return func(b *Built) { b.Register = fn } }

// Mount routes prefix, applies the module middleware, then calls register and the extra hook
// an empty prefix panics, modules never mount at the api root
func (b Built) Mount(r phttp.Router, register func(phttp.Router)) {
	r.Route(str.MustPrefix(b.Prefix), func(rr phttp.Router) {
		if len(b.Mw) > 0 {
			rr.Use(b.Mw...)
		}
		register(rr)
		b.Register(rr)
	})
}
