package geo

import (
	"context"
	"fmt"
	"net/http"

	"github.com/amass-me/locale-engine/internal/httpclient"
	"github.com/amass-me/locale-engine/pkg/model"
)

type ipwhoResponse struct {
	Success     *bool  `json:"success"`
	CountryCode string `json:"country_code"`
	Country     string `json:"country"`
	Message     string `json:"message"`
}

// IPWhoProvider queries an ipwho.is style endpoint returning {success, country_code, country}.
type IPWhoProvider struct {
	exec    *httpclient.Executor
	baseURL string
}

func NewIPWhoProvider(exec *httpclient.Executor, baseURL string) *IPWhoProvider {
	return &IPWhoProvider{exec: exec, baseURL: baseURL}
}

func (p *IPWhoProvider) Name() string { return p.exec.Provider() }

func (p *IPWhoProvider) Lookup(ctx context.Context) (model.Market, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL, nil)
	if err != nil {
		return model.Market{}, err
	}
	req.Header.Set("Accept", "application/json")

	var resp ipwhoResponse
	if err := p.exec.DoJSON(ctx, req, &resp); err != nil {
		return model.Market{}, err
	}
	// ipwho.is answers 200 with success=false for quota and lookup errors
	if resp.Success == nil || !*resp.Success {
		return model.Market{}, fmt.Errorf("%w: success=false %s", errMalformed, resp.Message)
	}
	return normalizeMarket(resp.CountryCode, resp.Country)
}
