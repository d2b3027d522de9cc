package service

import (
	"context"
	"fmt"
	"sync"

	"murmur/internal/services/activity/domain"
)

// ActionFunc renders a description of a, ok=false defers to the stored action
type ActionFunc func(ctx context.Context, a domain.Activity) (string, bool)

// Actions maps component/type pairs to renderers
type Actions struct {
	mu  sync.RWMutex
	fns map[string]ActionFunc
}

// NewActions returns a registry holding the built-in renderers
func NewActions() *Actions {
	a := &Actions{fns: map[string]ActionFunc{}}
	a.Register(domain.ComponentActivity, domain.TypeUpdate, byline("%s posted an update"))
	a.Register(domain.ComponentActivity, domain.TypeComment, byline("%s posted a new activity comment"))
	a.Register(domain.ComponentMembers, domain.TypeLastSeen, byline("%s was active"))
	return a
}

// Register binds fn to component and type, replacing any previous binding
func (a *Actions) Register(component, typ string, fn ActionFunc) {
	a.mu.Lock()
	a.fns[component+"/"+typ] = fn
	a.mu.Unlock()
}

// Render returns the rendered action, falling back to the stored one
func (a *Actions) Render(ctx context.Context, it domain.Activity) string {
	a.mu.RLock()
	fn, ok := a.fns[it.Component+"/"+it.Type]
	a.mu.RUnlock()
	if ok && fn != nil {
		if s, ok := fn(ctx, it); ok {
			return s
		}
	}
	return it.Action
}

func byline(format string) ActionFunc {
	return func(_ context.Context, a domain.Activity) (string, bool) {
		name := displayName(a)
		if name == "" {
			return "", false
		}
		return fmt.Sprintf(format, name), true
	}
}

// displayName prefers the profile name, then the directory display name, then the login
func displayName(a domain.Activity) string {
	switch {
	case a.FullName != "":
		return a.FullName
	case a.DisplayName != "":
		return a.DisplayName
	default:
		return a.UserLogin
	}
}
