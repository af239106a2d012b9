package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// Memory is an in-process Cache. Expired entries are dropped on access and
// by a periodic sweep that runs until ctx is done or the cache is closed.
type Memory struct {
	mu     sync.RWMutex
	prefix string
	ttl    time.Duration
	items  map[string]memoryEntry
	now    func() time.Time

	shutdown chan struct{}
	once     sync.Once
}

var _ Cache = (*Memory)(nil)

func NewMemory(ctx context.Context, prefix string, ttl time.Duration) *Memory {
	m := &Memory{
		prefix:   prefix,
		ttl:      ttl,
		items:    map[string]memoryEntry{},
		now:      time.Now,
		shutdown: make(chan struct{}),
	}
	go m.sweep(ctx, sweepInterval(ttl))
	return m
}

func sweepInterval(ttl time.Duration) time.Duration {
	if ttl < time.Minute {
		return time.Minute
	}
	return ttl
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	key = m.prefix + key
	m.mu.RLock()
	entry, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if entry.expired(m.now()) {
		m.mu.Lock()
		if current, ok := m.items[key]; ok && current.expired(m.now()) {
			delete(m.items, key)
		}
		m.mu.Unlock()
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	m.items[m.prefix+key] = memoryEntry{value: value, expiresAt: m.now().Add(m.ttl)}
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *Memory) Close() error {
	m.once.Do(func() { close(m.shutdown) })
	return nil
}

func (m *Memory) sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.shutdown:
			return
		case <-ticker.C:
			m.removeExpired()
		}
	}
}

func (m *Memory) removeExpired() {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, entry := range m.items {
		if entry.expired(now) {
			delete(m.items, key)
		}
	}
}
