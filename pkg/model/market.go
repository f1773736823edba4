package model

import (
	"strings"
	"time"
)

// Market is a regional identity that scopes navigation links and catalog content.
// Two markets are the same market when their codes match.
type Market struct {
	Code        string `json:"code"`
	DisplayName string `json:"name"`
}

// Equal reports whether m and other share a market code.
func (m Market) Equal(other Market) bool {
	return strings.EqualFold(m.Code, other.Code)
}

// IsZero reports whether m carries no code.
func (m Market) IsZero() bool {
	return m.Code == ""
}

func (m Market) String() string {
	return m.Code + " (" + m.DisplayName + ")"
}

// GeoLookupResult is a market inferred from IP geolocation.
type GeoLookupResult struct {
	Market    Market    `json:"market"`
	FetchedAt time.Time `json:"fetched_at"`
}

// CacheEntry is an immutable geo cache snapshot.
type CacheEntry struct {
	Value     GeoLookupResult
	ExpiresAt time.Time
}

// Expired reports whether the entry is past its expiry at now.
func (e CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// CatalogEntry tags a static payload with the market it belongs to.
type CatalogEntry[T any] struct {
	Payload T      `json:"payload"`
	Market  Market `json:"market"`
}

// Office is a contact record shown on market-scoped surfaces.
type Office struct {
	Name    string   `json:"name"`
	Address string   `json:"address"`
	Phones  []string `json:"phones,omitempty"`
	Fax     string   `json:"fax,omitempty"`
	Emails  []string `json:"emails,omitempty"`
}
