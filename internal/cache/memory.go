package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/strevio/strev/internal/observability"
)

// MemoryCache is the in-memory provider: a cost-based admission/eviction
// cache keyed by byte size, approximating the byte-capacity LRU the cache
// layer calls for without hand-rolling eviction bookkeeping.
type MemoryCache struct {
	c      *ristretto.Cache
	logger *slog.Logger
}

// NewMemoryCache builds a MemoryCache with capacity maxBytes. NumCounters
// follows ristretto's own sizing guidance (roughly 10x the expected number
// of resident items); BufferItems is ristretto's recommended default.
func NewMemoryCache(maxBytes int64, logger *slog.Logger) (*MemoryCache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxBytes / 1024 * 10,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &MemoryCache{c: c, logger: logger}, nil
}

func (m *MemoryCache) Get(ctx context.Context, key Key) (Entry, bool) {
	v, ok := m.c.Get(key.String())
	if !ok {
		observability.CacheRequestTotal.WithLabelValues("memory", "miss").Inc()
		return Entry{}, false
	}
	entry, ok := v.(Entry)
	if !ok {
		observability.CacheRequestTotal.WithLabelValues("memory", "miss").Inc()
		return Entry{}, false
	}
	if entry.Expired(time.Now()) {
		m.c.Del(key.String())
		observability.CacheRequestTotal.WithLabelValues("memory", "miss").Inc()
		return Entry{}, false
	}
	observability.CacheRequestTotal.WithLabelValues("memory", "hit").Inc()
	return entry, true
}

func (m *MemoryCache) Put(ctx context.Context, key Key, entry Entry) {
	cost := entry.Metadata.Size
	if cost <= 0 {
		cost = int64(len(entry.Bytes))
	}
	if !m.c.Set(key.String(), entry, cost) {
		m.logger.Warn("memory cache rejected entry", "key", key.String(), "cost", cost)
	}
}

func (m *MemoryCache) Delete(ctx context.Context, key Key) {
	m.c.Del(key.String())
}

func (m *MemoryCache) Close() error {
	m.c.Close()
	return nil
}
