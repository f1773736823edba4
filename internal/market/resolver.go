package market

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/amass-me/locale-engine/internal/metrics"
	"github.com/amass-me/locale-engine/pkg/model"
)

// Source names the signal a resolved market came from.
type Source string

const (
	SourceSlug    Source = "slug"
	SourceGeo     Source = "geo"
	SourceDefault Source = "default"
)

// GeoSource is the geolocation side of resolution, implemented by *geo.Service.
type GeoSource interface {
	// Current returns the last known geo market without I/O.
	Current() (model.Market, bool)
	// MarketByIP returns a fresh or freshly fetched geo market and may block on I/O.
	MarketByIP(ctx context.Context) model.Market
}

// Resolver combines the explicit URL slug with the geo market.
type Resolver struct {
	reg    *Registry
	geo    GeoSource
	logger *zap.Logger
}

// NewResolver builds a resolver. geo may be nil, in which case only slugs and the default apply.
func NewResolver(reg *Registry, geo GeoSource, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{reg: reg, geo: geo, logger: logger}
}

// Registry returns the market registry the resolver matches against.
func (r *Resolver) Registry() *Registry { return r.reg }

// ResolveMarket returns the market for urlPath. It never blocks.
func (r *Resolver) ResolveMarket(urlPath string) model.Market {
	m, _ := r.ResolveWithSource(urlPath)
	return m
}

// ResolveWithSource is ResolveMarket plus the signal that decided it.
// A first path segment matching a configured slug always wins and never consults geo state.
func (r *Resolver) ResolveWithSource(urlPath string) (model.Market, Source) {
	if seg := FirstSegment(urlPath); seg != "" {
		if m, ok := r.reg.BySlug(seg); ok {
			metrics.IncResolution(string(SourceSlug), m.Code)
			return m, SourceSlug
		}
	}
	if r.geo != nil {
		if m, ok := r.geo.Current(); ok {
			m = r.reg.Canonical(m)
			metrics.IncResolution(string(SourceGeo), m.Code)
			return m, SourceGeo
		}
	}
	def := r.reg.Default()
	metrics.IncResolution(string(SourceDefault), def.Code)
	return def, SourceDefault
}

// Prefetch refreshes the geo market in the background and hands it to onResolved,
// unless ctx is done by the time the lookup returns. The returned channel closes when
// the background work finishes.
func (r *Resolver) Prefetch(ctx context.Context, onResolved func(model.Market)) <-chan struct{} {
	done := make(chan struct{})
	if r.geo == nil {
		close(done)
		return done
	}
	go func() {
		defer close(done)
		m := r.reg.Canonical(r.geo.MarketByIP(ctx))
		if ctx.Err() != nil {
			r.logger.Debug("market.prefetch_discarded", zap.String("market", m.Code), zap.Error(ctx.Err()))
			return
		}
		if onResolved != nil {
			onResolved(m)
		}
	}()
	return done
}

// FirstSegment returns the first non-empty path segment of urlPath, without query or fragment.
func FirstSegment(urlPath string) string {
	if i := strings.IndexAny(urlPath, "?#"); i >= 0 {
		urlPath = urlPath[:i]
	}
	for _, seg := range strings.Split(urlPath, "/") {
		if seg = strings.TrimSpace(seg); seg != "" {
			return strings.ToLower(seg)
		}
	}
	return ""
}
