package geo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/amass-me/locale-engine/internal/httpclient"
	"github.com/amass-me/locale-engine/pkg/model"
)

// KeyFunc supplies an optional API key at request time. An empty key means anonymous access.
type KeyFunc func(ctx context.Context) (string, error)

type ipapiResponse struct {
	Country     string `json:"country"`
	CountryName string `json:"country_name"`
	Error       bool   `json:"error"`
	Reason      string `json:"reason"`
}

// IPAPIProvider queries an ipapi.co style endpoint returning {country, country_name}.
type IPAPIProvider struct {
	exec    *httpclient.Executor
	baseURL string
	key     KeyFunc
}

func NewIPAPIProvider(exec *httpclient.Executor, baseURL string, key KeyFunc) *IPAPIProvider {
	return &IPAPIProvider{exec: exec, baseURL: baseURL, key: key}
}

func (p *IPAPIProvider) Name() string { return p.exec.Provider() }

func (p *IPAPIProvider) Lookup(ctx context.Context) (model.Market, error) {
	u, err := url.Parse(p.baseURL)
	if err != nil {
		return model.Market{}, fmt.Errorf("parse url: %w", err)
	}
	if p.key != nil {
		key, err := p.key(ctx)
		if err != nil {
			return model.Market{}, fmt.Errorf("resolve api key: %w", err)
		}
		if key != "" {
			q := u.Query()
			q.Set("key", key)
			u.RawQuery = q.Encode()
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return model.Market{}, err
	}
	req.Header.Set("Accept", "application/json")

	var resp ipapiResponse
	if err := p.exec.DoJSON(ctx, req, &resp); err != nil {
		return model.Market{}, err
	}
	if resp.Error {
		return model.Market{}, fmt.Errorf("%w: %s", errMalformed, resp.Reason)
	}
	return normalizeMarket(resp.Country, resp.CountryName)
}
