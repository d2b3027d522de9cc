package query

import (
	"context"
	"sort"
	"sync"
)

// Overrides are spec fields a scope may force
type Overrides struct {
	DisplayComments *string
	ShowHidden      *bool
}

// ScopeFunc resolves a named scope against the spec being composed
// ok=false means the scope does not apply and contributes nothing
type ScopeFunc func(ctx context.Context, spec Spec) (node FilterNode, ov Overrides, ok bool)

// ScopeResolver looks up scopes by name
type ScopeResolver interface {
	Resolve(ctx context.Context, name string, spec Spec) (FilterNode, Overrides, bool)
}

// Scopes is a name to ScopeFunc registry, safe for concurrent use
type Scopes struct {
	mu  sync.RWMutex
	fns map[string]ScopeFunc
}

// NewScopes returns an empty registry
func NewScopes() *Scopes { return &Scopes{fns: map[string]ScopeFunc{}} }

// Register binds fn to name, replacing any previous binding
func (s *Scopes) Register(name string, fn ScopeFunc) {
	s.mu.Lock()
	s.fns[name] = fn
	s.mu.Unlock()
}

// Resolve implements ScopeResolver
func (s *Scopes) Resolve(ctx context.Context, name string, spec Spec) (FilterNode, Overrides, bool) {
	if s == nil {
		return FilterNode{}, Overrides{}, false
	}
	s.mu.RLock()
	fn, ok := s.fns[name]
	s.mu.RUnlock()
	if !ok || fn == nil {
		return FilterNode{}, Overrides{}, false
	}
	return fn(ctx, spec)
}

// Names lists registered scopes in sorted order
func (s *Scopes) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.fns))
	for n := range s.fns {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
