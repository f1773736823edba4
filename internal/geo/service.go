package geo

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/amass-me/locale-engine/internal/metrics"
	"github.com/amass-me/locale-engine/pkg/model"
)

const flightKey = "geo_lookup"

// persistTimeout bounds the cache write and OnResolved after a successful lookup,
// independent of how much of the lookup budget the providers used.
const persistTimeout = 2 * time.Second

// Options tunes a Service. Zero values fall back to the defaults below.
type Options struct {
	// Fallback is served when no lookup ever succeeded.
	Fallback model.Market
	// Canonicalize maps a provider market onto a configured one. Nil keeps provider values.
	Canonicalize func(model.Market) model.Market
	// ProviderTimeout bounds each provider call. Default 2s.
	ProviderTimeout time.Duration
	// LookupTimeout bounds a whole provider chain run. Default 5s.
	LookupTimeout time.Duration
	// FailureCooldown suppresses new lookups after the whole chain failed. Default 1m.
	FailureCooldown time.Duration
	// OnResolved is called after every successful lookup.
	OnResolved func(ctx context.Context, previous model.Market, res model.GeoLookupResult)
	Now        func() time.Time
}

// Service resolves the visitor market from IP geolocation behind a TTL cache.
type Service struct {
	providers []Provider
	cache     *Cache
	opts      Options
	logger    *zap.Logger

	group    singleflight.Group
	failedAt atomic.Int64
}

func NewService(providers []Provider, cache *Cache, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ProviderTimeout <= 0 {
		opts.ProviderTimeout = 2 * time.Second
	}
	if opts.LookupTimeout <= 0 {
		opts.LookupTimeout = 5 * time.Second
	}
	if opts.FailureCooldown <= 0 {
		opts.FailureCooldown = time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{providers: providers, cache: cache, opts: opts, logger: logger}
}

// Fallback returns the market served when nothing better is known.
func (s *Service) Fallback() model.Market { return s.opts.Fallback }

// Entry exposes the current cache snapshot.
func (s *Service) Entry() (model.CacheEntry, bool) { return s.cache.Entry() }

// Current returns the last known geo market, fresh or stale, without I/O.
func (s *Service) Current() (model.Market, bool) {
	e, ok := s.cache.Entry()
	if !ok {
		return model.Market{}, false
	}
	return s.canonical(e.Value.Market), true
}

// canonical maps m onto a configured market. Restored records may predate the current
// market set, so reads go through it as well as fresh lookups.
func (s *Service) canonical(m model.Market) model.Market {
	if s.opts.Canonicalize == nil {
		return m
	}
	return s.opts.Canonicalize(m)
}

// MarketByIP returns the cached market while fresh; otherwise it runs the provider chain.
// It never fails: when every provider fails it serves the stale entry or the fallback market.
// If ctx ends first the best local value is returned and the shared lookup keeps running.
func (s *Service) MarketByIP(ctx context.Context) model.Market {
	now := s.opts.Now()
	if res, ok := s.cache.Fresh(now); ok {
		metrics.IncCacheAccess("hit")
		return s.canonical(res.Market)
	}
	metrics.IncCacheAccess("miss")

	if s.coolingDown(now) {
		s.logger.Debug("geo.lookup_suppressed", zap.Duration("cooldown", s.opts.FailureCooldown))
		return s.bestEffort("cooldown")
	}

	res, err := s.await(ctx, false)
	if err != nil {
		return s.bestEffort(fallbackSource(err))
	}
	return res.Market
}

// Refresh runs the provider chain even when the cache is fresh. Concurrent callers share one run.
func (s *Service) Refresh(ctx context.Context) (model.GeoLookupResult, error) {
	return s.await(ctx, true)
}

func (s *Service) await(ctx context.Context, force bool) (model.GeoLookupResult, error) {
	ch := s.group.DoChan(flightKey, func() (any, error) {
		// detached so one caller leaving does not abort the others
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.LookupTimeout)
		defer cancel()
		return s.lookup(lctx, force)
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return model.GeoLookupResult{}, r.Err
		}
		return r.Val.(model.GeoLookupResult), nil
	case <-ctx.Done():
		return model.GeoLookupResult{}, ctx.Err()
	}
}

func (s *Service) lookup(ctx context.Context, force bool) (model.GeoLookupResult, error) {
	if !force {
		// a flight that finished just before this one started already refreshed the cache
		if res, ok := s.cache.Fresh(s.opts.Now()); ok {
			res.Market = s.canonical(res.Market)
			return res, nil
		}
	}

	var errs []error
	for _, p := range s.providers {
		start := time.Now()
		m, err := s.tryProvider(ctx, p)
		if err != nil {
			errs = append(errs, &ProviderError{Provider: p.Name(), Err: err})
			s.logger.Warn("geo.provider_failed",
				zap.String("provider", p.Name()),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err))
			if errors.Is(err, errMalformed) {
				metrics.IncProviderRequest(p.Name(), "invalid_payload")
			}
			if ctx.Err() != nil {
				break
			}
			continue
		}
		metrics.IncProviderRequest(p.Name(), "success")

		m = s.canonical(m)
		previous, _ := s.Current()
		res := model.GeoLookupResult{Market: m, FetchedAt: s.opts.Now().UTC()}

		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
		defer cancel()
		s.cache.Put(pctx, res)
		s.failedAt.Store(0)
		metrics.SetLastGeoRefresh(res.FetchedAt)

		s.logger.Info("geo.resolved",
			zap.String("provider", p.Name()),
			zap.String("market", m.Code),
			zap.String("previous", previous.Code))
		if s.opts.OnResolved != nil {
			s.opts.OnResolved(pctx, previous, res)
		}
		return res, nil
	}

	s.failedAt.Store(s.opts.Now().UnixNano())
	metrics.IncError("geo", "all_providers_failed")
	err := ErrAllProvidersFailed
	if len(errs) > 0 {
		err = fmt.Errorf("%w: %w", ErrAllProvidersFailed, errors.Join(errs...))
	}
	s.logger.Warn("geo.all_providers_failed", zap.Int("providers", len(s.providers)), zap.Error(err))
	return model.GeoLookupResult{}, err
}

func (s *Service) tryProvider(ctx context.Context, p Provider) (model.Market, error) {
	pctx, cancel := context.WithTimeout(ctx, s.opts.ProviderTimeout)
	defer cancel()
	return p.Lookup(pctx)
}

func (s *Service) coolingDown(now time.Time) bool {
	at := s.failedAt.Load()
	if at == 0 {
		return false
	}
	return now.Sub(time.Unix(0, at)) < s.opts.FailureCooldown
}

func (s *Service) bestEffort(reason string) model.Market {
	if m, ok := s.Current(); ok {
		metrics.IncFallback("stale")
		s.logger.Debug("geo.serving_stale", zap.String("reason", reason), zap.String("market", m.Code))
		return m
	}
	metrics.IncFallback("default")
	s.logger.Debug("geo.serving_default", zap.String("reason", reason), zap.String("market", s.opts.Fallback.Code))
	return s.opts.Fallback
}

func fallbackSource(err error) string {
	switch {
	case errors.Is(err, ErrAllProvidersFailed):
		return "all_providers_failed"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "caller_canceled"
	default:
		return "lookup_failed"
	}
}
