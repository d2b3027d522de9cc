package cache

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Cache for single-node deployments and tests
type Memory struct {
	mu     sync.Mutex
	groups map[string]map[string]entry
	epochs map[string]int64
	now    func() time.Time
}

type entry struct {
	val []byte
	exp time.Time
}

// NewMemory returns an empty Memory cache
func NewMemory() *Memory {
	return &Memory{
		groups: map[string]map[string]entry{},
		epochs: map[string]int64{},
		now:    time.Now,
	}
}

// Get implements Cache
func (m *Memory) Get(_ context.Context, group, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.groups[group][key]
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && !m.now().Before(e.exp) {
		delete(m.groups[group], key)
		return nil, false, nil
	}
	out := make([]byte, len(e.val))
	copy(out, e.val)
	return out, true, nil
}

// Set implements Cache
func (m *Memory) Set(_ context.Context, group, key string, val []byte, ttl time.Duration) error {
	e := entry{val: append([]byte(nil), val...)}
	m.mu.Lock()
	defer m.mu.Unlock()
	if ttl > 0 {
		e.exp = m.now().Add(ttl)
	}
	g, ok := m.groups[group]
	if !ok {
		g = map[string]entry{}
		m.groups[group] = g
	}
	g[key] = e
	return nil
}

// Delete implements Cache
func (m *Memory) Delete(_ context.Context, group string, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.groups[group], k)
	}
	return nil
}

// Epoch implements Cache
func (m *Memory) Epoch(_ context.Context, group string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epochs[group], nil
}

// Bump implements Cache
// keys under older epochs are unreachable, drop them so memory does not grow forever
func (m *Memory) Bump(_ context.Context, group string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.epochs[group]++
	delete(m.groups, group)
	return m.epochs[group], nil
}

// Len reports how many live entries group holds
func (m *Memory) Len(group string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.groups[group])
}
