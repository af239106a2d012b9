// Package lazy provides compute-once values shared across requests.
package lazy

import (
	"context"
	"sync"
)

// lock is a mutex whose waiters give up when their context ends.
type lock chan struct{}

func newLock() lock {
	return make(lock, 1)
}

func (l lock) acquire(ctx context.Context) error {
	select {
	case l <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l lock) hold() {
	l <- struct{}{}
}

func (l lock) release() {
	<-l
}

// Value computes its content on first use. Failed loads are not remembered,
// the next Get retries. Callers waiting for a load in progress return
// ctx.Err() once their own context ends.
type Value[V any] struct {
	mu     lock
	load   func(ctx context.Context) (V, error)
	value  V
	loaded bool
}

func NewValue[V any](load func(ctx context.Context) (V, error)) *Value[V] {
	return &Value[V]{mu: newLock(), load: load}
}

func (v *Value[V]) Get(ctx context.Context) (V, error) {
	if err := v.mu.acquire(ctx); err != nil {
		var zero V
		return zero, err
	}
	defer v.mu.release()
	if v.loaded {
		return v.value, nil
	}
	value, err := v.load(ctx)
	if err != nil {
		var zero V
		return zero, err
	}
	v.value = value
	v.loaded = true
	return value, nil
}

// Reset drops the computed content.
func (v *Value[V]) Reset() {
	v.mu.hold()
	defer v.mu.release()
	var zero V
	v.value = zero
	v.loaded = false
}

// Map memoizes one value per key. Concurrent callers asking for the same key
// wait for a single load, or until their context ends. Keys whose load
// failed are forgotten.
type Map[K comparable, V any] struct {
	mu      sync.Mutex
	load    func(ctx context.Context, key K) (V, error)
	entries map[K]*entry[V]
}

type entry[V any] struct {
	mu    lock
	value V
	ok    bool
}

func NewMap[K comparable, V any](load func(ctx context.Context, key K) (V, error)) *Map[K, V] {
	return &Map[K, V]{
		load:    load,
		entries: make(map[K]*entry[V]),
	}
}

func (m *Map[K, V]) Get(ctx context.Context, key K) (V, error) {
	m.mu.Lock()
	e, exists := m.entries[key]
	if !exists {
		e = &entry[V]{mu: newLock()}
		m.entries[key] = e
	}
	m.mu.Unlock()

	if err := e.mu.acquire(ctx); err != nil {
		var zero V
		return zero, err
	}
	defer e.mu.release()
	if e.ok {
		return e.value, nil
	}
	value, err := m.load(ctx, key)
	if err != nil {
		m.mu.Lock()
		if m.entries[key] == e {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		var zero V
		return zero, err
	}
	e.value = value
	e.ok = true
	return value, nil
}

// Len returns the number of keys loaded or being loaded.
func (m *Map[K, V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Range calls f for every loaded value until f returns false.
func (m *Map[K, V]) Range(f func(key K, value V) bool) {
	m.mu.Lock()
	loaded := make(map[K]*entry[V], len(m.entries))
	for k, e := range m.entries {
		loaded[k] = e
	}
	m.mu.Unlock()
	for k, e := range loaded {
		e.mu.hold()
		value, ok := e.value, e.ok
		e.mu.release()
		if ok && !f(k, value) {
			return
		}
	}
}
