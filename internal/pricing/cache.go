package pricing

import (
	"context"
	"sync"
	"time"

	"github.com/core-coin/offramp/internal/models"
)

// Cache stores recent prices by symbol.
type Cache interface {
	Get(ctx context.Context, symbol string) (models.Price, bool)
	Set(ctx context.Context, price models.Price)
}

type cacheEntry struct {
	price    models.Price
	storedAt time.Time
}

// MemoryCache is an in-process Cache with a fixed TTL.
type MemoryCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// NewMemoryCache creates a cache whose entries expire after ttl.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return NewMemoryCacheWithClock(ttl, time.Now)
}

// NewMemoryCacheWithClock is NewMemoryCache with an injectable clock.
func NewMemoryCacheWithClock(ttl time.Duration, now func() time.Time) *MemoryCache {
	return &MemoryCache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]cacheEntry),
	}
}

func (m *MemoryCache) Get(_ context.Context, symbol string) (models.Price, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[symbol]
	if !ok || m.now().Sub(entry.storedAt) >= m.ttl {
		return models.Price{}, false
	}
	return entry.price, true
}

func (m *MemoryCache) Set(_ context.Context, price models.Price) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[price.Symbol] = cacheEntry{price: price, storedAt: m.now()}
}
