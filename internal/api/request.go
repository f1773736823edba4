package api

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/amass-me/locale-engine/internal/market"
	"github.com/amass-me/locale-engine/pkg/model"
)

const maxPathLen = 2048

// NavigateRequest points a surface at a new page path.
type NavigateRequest struct {
	Path string `json:"path"`
}

func (r NavigateRequest) Validate() error {
	return validatePath(r.Path)
}

// GoToRequest selects a page directly.
type GoToRequest struct {
	Index *int `json:"index"`
}

func (r GoToRequest) Validate() error {
	if r.Index == nil {
		return errors.New("index is required")
	}
	if *r.Index < 0 {
		return errors.New("index must not be negative")
	}
	return nil
}

func validatePath(p string) error {
	if len(p) > maxPathLen {
		return fmt.Errorf("path exceeds %d bytes", maxPathLen)
	}
	if strings.ContainsAny(p, "\r\n") {
		return errors.New("path must be a single line")
	}
	return nil
}

// parseLimit reads an optional non-negative integer query value.
func parseLimit(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("cap must be a non-negative integer")
	}
	return n, nil
}

// MarketResponse describes a resolved market.
type MarketResponse struct {
	Code   string        `json:"code"`
	Name   string        `json:"name"`
	Slug   string        `json:"slug"`
	Source market.Source `json:"source,omitempty"`
	Href   string        `json:"href,omitempty"`
}

// MarketListItem is one entry of the country selector.
type MarketListItem struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	Slug    string `json:"slug"`
	Href    string `json:"href"`
	Default bool   `json:"default"`
}

// LinkResponse is a market-scoped path.
type LinkResponse struct {
	Href   string `json:"href"`
	Market string `json:"market"`
}

// OfficesResponse is the prioritized catalog for a market.
type OfficesResponse struct {
	Market  MarketResponse                     `json:"market"`
	Offices []model.CatalogEntry[model.Office] `json:"offices"`
}
