package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Counter counts hits per key inside a fixed window that opens on the
// first hit. Hit returns the count including this hit and when the window
// closes.
type Counter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int, time.Time, error)
}

type bucket struct {
	count int
	reset time.Time
}

// Memory is a per-process Counter used when no Redis is configured.
type Memory struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	hits    int
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{buckets: make(map[string]*bucket), now: time.Now}
}

// pruneEvery bounds how often expired buckets are dropped.
const pruneEvery = 1024

func (m *Memory) Hit(_ context.Context, key string, window time.Duration) (int, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.hits++
	if m.hits%pruneEvery == 0 {
		for k, b := range m.buckets {
			if now.After(b.reset) {
				delete(m.buckets, k)
			}
		}
	}

	b, ok := m.buckets[key]
	if !ok || now.After(b.reset) {
		b = &bucket{reset: now.Add(window)}
		m.buckets[key] = b
	}
	b.count++
	return b.count, b.reset, nil
}

func (m *Memory) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}
