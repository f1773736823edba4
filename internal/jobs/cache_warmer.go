package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/amass-me/locale-engine/pkg/model"
)

// GeoRefresher is the part of geo.Service the warmer drives.
type GeoRefresher interface {
	Entry() (model.CacheEntry, bool)
	Refresh(ctx context.Context) (model.GeoLookupResult, error)
}

// CacheWarmer periodically refreshes the geo cache before it expires so request paths
// keep hitting a fresh entry.
type CacheWarmer struct {
	logger   *zap.Logger
	geo      GeoRefresher
	interval time.Duration
	margin   time.Duration
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCacheWarmer refreshes when the entry is missing or expires within margin.
func NewCacheWarmer(logger *zap.Logger, geo GeoRefresher, interval, margin time.Duration) *CacheWarmer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheWarmer{
		logger:   logger,
		geo:      geo,
		interval: interval,
		margin:   margin,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start runs one warm-up immediately, then one per interval until stopped.
func (w *CacheWarmer) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("cache_warmer.started",
		zap.Duration("interval", w.interval),
		zap.Duration("margin", w.margin))
	w.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			w.RunOnce(ctx)
		case <-w.stopCh:
			w.logger.Info("cache_warmer.stopped (manual stop)")
			return
		case <-ctx.Done():
			w.logger.Info("cache_warmer.stopped (context canceled)")
			return
		}
	}
}

// Stop halts the warmer. It is safe to call more than once.
func (w *CacheWarmer) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

// RunOnce refreshes the cache if needed and reports whether a refresh ran.
func (w *CacheWarmer) RunOnce(ctx context.Context) bool {
	if e, ok := w.geo.Entry(); ok && w.now().Add(w.margin).Before(e.ExpiresAt) {
		w.logger.Debug("cache_warmer.fresh", zap.Time("expires_at", e.ExpiresAt))
		return false
	}

	start := time.Now()
	res, err := w.geo.Refresh(ctx)
	if err != nil {
		w.logger.Warn("cache_warmer.refresh_failed", zap.Error(err))
		return true
	}
	w.logger.Info("cache_warmer.success",
		zap.String("market", res.Market.Code),
		zap.Duration("duration", time.Since(start)))
	return true
}
