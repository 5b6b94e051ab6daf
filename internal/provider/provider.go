// Package provider adapts the external places API behind an ordered chain of
// data sources. Search degrades through the chain and never fails outright;
// detail fetches go to the primary source only and surface typed errors.
package provider

import (
	"context"
	"fmt"
)

// Tier identifies which source in the chain produced a result.
type Tier string

const (
	TierPrimary   Tier = "primary"
	TierLegacy    Tier = "legacy"
	TierSynthetic Tier = "synthetic"
)

// SearchQuery describes one rate-limited provider search.
type SearchQuery struct {
	Text         string
	Latitude     float64
	Longitude    float64
	RadiusMeters float64
	MaxResults   int
}

// RawPlace is the provider-shaped record before normalization. Search
// results fill the descriptive subset; Details adds contact, photo, and
// pricing fields.
type RawPlace struct {
	PlaceID        string
	Name           string
	Address        string
	Latitude       *float64
	Longitude      *float64
	Types          []string
	Rating         *float64
	RatingCount    int
	BusinessStatus string
	PriceLevel     *int
	Phone          string
	Website        string
	PhotoRefs      []string
	Extras         map[string]any
}

// SearchResult carries the places found plus the tier that produced them,
// so callers can flag degraded sourcing.
type SearchResult struct {
	Places []RawPlace
	Tier   Tier
}

// Degraded reports whether the result came from the synthetic fallback tier.
func (r *SearchResult) Degraded() bool {
	return r.Tier == TierSynthetic
}

// Source is one tier in the search fallback chain.
type Source interface {
	Tier() Tier
	Search(ctx context.Context, q SearchQuery) ([]RawPlace, error)
}

// ProviderError is the typed failure for detail fetches, carrying the
// operation and external id for per-place error reporting.
type ProviderError struct {
	Op      string
	PlaceID string
	Err     error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider: %s %s: %v", e.Op, e.PlaceID, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
