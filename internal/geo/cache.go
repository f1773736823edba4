package geo

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/amass-me/locale-engine/internal/metrics"
	"github.com/amass-me/locale-engine/internal/store"
	"github.com/amass-me/locale-engine/pkg/model"
)

// CacheKey is the fixed store key holding the persisted geo market.
const CacheKey = "geo_market_cache"

// DefaultTTL is how long a geo lookup is trusted before a refresh is attempted.
const DefaultTTL = 24 * time.Hour

// record is the persisted layout: {"value":{"code","name"},"ts":<epoch-millis>}.
type record struct {
	Value model.Market `json:"value"`
	TS    int64        `json:"ts"`
}

// Cache holds the last resolved geo market as an immutable snapshot.
// Readers never lock; writers swap the pointer and the last writer wins.
type Cache struct {
	entry  atomic.Pointer[model.CacheEntry]
	store  store.Store
	ttl    time.Duration
	logger *zap.Logger
}

// NewCache builds an empty cache persisting through st. st may be nil for a memory-only cache.
func NewCache(st store.Store, ttl time.Duration, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{store: st, ttl: ttl, logger: logger}
}

// TTL returns the freshness window.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Entry returns the current snapshot, fresh or stale.
func (c *Cache) Entry() (model.CacheEntry, bool) {
	e := c.entry.Load()
	if e == nil {
		return model.CacheEntry{}, false
	}
	return *e, true
}

// Fresh returns the cached result when it has not expired at now.
func (c *Cache) Fresh(now time.Time) (model.GeoLookupResult, bool) {
	e := c.entry.Load()
	if e == nil || e.Expired(now) {
		return model.GeoLookupResult{}, false
	}
	return e.Value, true
}

// Put installs res as the current snapshot and persists it.
// A persistence failure is logged; the in-memory snapshot is kept.
func (c *Cache) Put(ctx context.Context, res model.GeoLookupResult) model.CacheEntry {
	entry := &model.CacheEntry{Value: res, ExpiresAt: res.FetchedAt.Add(c.ttl)}
	c.entry.Store(entry)

	if c.store != nil {
		rec := record{Value: res.Market, TS: res.FetchedAt.UnixMilli()}
		if err := c.store.SetJSON(ctx, CacheKey, rec); err != nil {
			metrics.IncError("geo_cache", "persist_failed")
			c.logger.Warn("geo.cache_persist_failed", zap.Error(err))
		}
	}
	return *entry
}

// Restore loads the persisted record, if any. Expired records are still restored
// so they can serve as the stale fallback.
func (c *Cache) Restore(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	var rec record
	if err := c.store.GetJSON(ctx, CacheKey, &rec); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("restore geo cache: %w", err)
	}
	if rec.Value.IsZero() || rec.TS <= 0 {
		c.logger.Warn("geo.cache_record_invalid", zap.Int64("ts", rec.TS))
		return nil
	}

	fetched := time.UnixMilli(rec.TS).UTC()
	entry := &model.CacheEntry{
		Value:     model.GeoLookupResult{Market: rec.Value, FetchedAt: fetched},
		ExpiresAt: fetched.Add(c.ttl),
	}
	// a lookup that finished first wins over the persisted record
	if !c.entry.CompareAndSwap(nil, entry) {
		return nil
	}
	c.logger.Info("geo.cache_restored",
		zap.String("market", rec.Value.Code),
		zap.Time("fetched_at", fetched))
	return nil
}
