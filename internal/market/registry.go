package market

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"github.com/amass-me/locale-engine/pkg/config"
	"github.com/amass-me/locale-engine/pkg/model"
)

// SlugCollisionError reports two configured markets deriving the same URL slug.
type SlugCollisionError struct {
	Slug   string
	First  string
	Second string
}

func (e *SlugCollisionError) Error() string {
	return fmt.Sprintf("slug %q is claimed by both %s and %s", e.Slug, e.First, e.Second)
}

// Slug derives the URL form of a display name: lower case, whitespace runs joined by "-".
func Slug(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}

// Registry is the immutable set of configured markets.
type Registry struct {
	markets []model.Market
	byCode  map[string]model.Market
	bySlug  map[string]model.Market
	slugs   map[string]string
	def     model.Market
}

// NewRegistry validates specs and indexes them by code and slug.
// Any slug collision, aliases included, is rejected with *SlugCollisionError.
func NewRegistry(specs []config.MarketSpec, defaultCode string) (*Registry, error) {
	if len(specs) == 0 {
		return nil, errors.New("no markets configured")
	}

	r := &Registry{
		byCode: make(map[string]model.Market, len(specs)),
		bySlug: make(map[string]model.Market, len(specs)),
		slugs:  make(map[string]string, len(specs)),
	}
	for _, spec := range specs {
		region, err := language.ParseRegion(spec.Code)
		if err != nil {
			return nil, fmt.Errorf("market %q: invalid region code: %w", spec.Code, err)
		}
		m := model.Market{Code: region.String(), DisplayName: strings.TrimSpace(spec.DisplayName)}
		if _, dup := r.byCode[m.Code]; dup {
			return nil, fmt.Errorf("market %s configured twice", m.Code)
		}

		primary := Slug(m.DisplayName)
		if primary == "" {
			return nil, fmt.Errorf("market %s has an empty display name", m.Code)
		}
		for _, s := range append([]string{primary}, spec.Aliases...) {
			s = Slug(s)
			if s == "" {
				continue
			}
			if prev, taken := r.bySlug[s]; taken {
				if prev.Code == m.Code {
					continue
				}
				return nil, &SlugCollisionError{Slug: s, First: prev.Code, Second: m.Code}
			}
			r.bySlug[s] = m
		}

		r.byCode[m.Code] = m
		r.slugs[m.Code] = primary
		r.markets = append(r.markets, m)
	}

	def, ok := r.byCode[strings.ToUpper(strings.TrimSpace(defaultCode))]
	if !ok {
		return nil, fmt.Errorf("default market %q is not configured", defaultCode)
	}
	r.def = def
	return r, nil
}

// Default is the market served when nothing else resolves. Its links carry no prefix.
func (r *Registry) Default() model.Market { return r.def }

// IsDefault reports whether m is the default market.
func (r *Registry) IsDefault(m model.Market) bool { return r.def.Equal(m) }

// Markets returns the configured markets in configuration order.
func (r *Registry) Markets() []model.Market {
	out := make([]model.Market, len(r.markets))
	copy(out, r.markets)
	return out
}

// Lookup finds a market by code, case-insensitively.
func (r *Registry) Lookup(code string) (model.Market, bool) {
	m, ok := r.byCode[strings.ToUpper(code)]
	return m, ok
}

// BySlug finds a market by primary or alias slug, case-insensitively.
func (r *Registry) BySlug(slug string) (model.Market, bool) {
	m, ok := r.bySlug[strings.ToLower(slug)]
	return m, ok
}

// SlugFor returns the primary slug of m. Unknown markets fall back to Slug(m.DisplayName).
func (r *Registry) SlugFor(m model.Market) string {
	if s, ok := r.slugs[strings.ToUpper(m.Code)]; ok {
		return s
	}
	return Slug(m.DisplayName)
}

// Canonical maps m onto its configured market; unconfigured markets become the default.
func (r *Registry) Canonical(m model.Market) model.Market {
	if known, ok := r.Lookup(m.Code); ok {
		return known
	}
	return r.def
}
