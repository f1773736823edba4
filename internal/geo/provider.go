package geo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"github.com/amass-me/locale-engine/pkg/model"
)

// ErrAllProvidersFailed is returned by a lookup when every provider in the chain failed.
var ErrAllProvidersFailed = errors.New("geo: all providers failed")

// Provider resolves the caller's market from an IP geolocation endpoint.
type Provider interface {
	Name() string
	Lookup(ctx context.Context) (model.Market, error)
}

// ProviderError wraps a single provider failure. It is recovered by trying the next provider.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("geo provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// errMalformed marks a 2xx payload that does not carry a usable country.
var errMalformed = errors.New("malformed payload")

// normalizeMarket validates an ISO 3166-1 country code and builds a Market from it.
func normalizeMarket(code, name string) (model.Market, error) {
	code = strings.TrimSpace(code)
	name = strings.TrimSpace(name)
	if code == "" {
		return model.Market{}, fmt.Errorf("%w: missing country code", errMalformed)
	}
	region, err := language.ParseRegion(code)
	if err != nil {
		return model.Market{}, fmt.Errorf("%w: country %q: %v", errMalformed, code, err)
	}
	if !region.IsCountry() {
		return model.Market{}, fmt.Errorf("%w: %q is not a country", errMalformed, code)
	}
	canonical := region.String()
	if name == "" {
		name = canonical
	}
	return model.Market{Code: canonical, DisplayName: name}, nil
}
