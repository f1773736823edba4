package market

import "github.com/amass-me/locale-engine/pkg/model"

// Prioritize returns catalog with entries of m first, keeping the original order inside
// both partitions. A positive limit truncates the result, so when more than limit entries
// match m the remaining markets are dropped entirely. catalog is never modified.
func Prioritize[T any](catalog []model.CatalogEntry[T], m model.Market, limit int) []model.CatalogEntry[T] {
	out := make([]model.CatalogEntry[T], 0, len(catalog))
	for _, e := range catalog {
		if e.Market.Equal(m) {
			out = append(out, e)
		}
	}
	for _, e := range catalog {
		if !e.Market.Equal(m) {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
