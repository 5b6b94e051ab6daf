package provider

import (
	"context"

	"github.com/sells-group/places-cli/pkg/places"
)

// primarySource queries the v1 structured search endpoint.
type primarySource struct {
	client places.Client
}

// NewPrimarySource wraps the v1 client as the first chain tier.
func NewPrimarySource(client places.Client) Source {
	return &primarySource{client: client}
}

func (s *primarySource) Tier() Tier { return TierPrimary }

func (s *primarySource) Search(ctx context.Context, q SearchQuery) ([]RawPlace, error) {
	resp, err := s.client.SearchText(ctx, places.SearchRequest{
		Query:        q.Text,
		Latitude:     q.Latitude,
		Longitude:    q.Longitude,
		RadiusMeters: q.RadiusMeters,
		MaxResults:   q.MaxResults,
	})
	if err != nil {
		return nil, err
	}

	out := make([]RawPlace, 0, len(resp.Places))
	for _, p := range resp.Places {
		out = append(out, fromV1Place(p))
	}
	return out, nil
}

// fromV1Place converts a v1 API place into the provider-neutral shape.
func fromV1Place(p places.Place) RawPlace {
	raw := RawPlace{
		PlaceID:        p.ID,
		Name:           p.DisplayName.Text,
		Address:        p.FormattedAddress,
		Types:          p.Types,
		RatingCount:    p.UserRatingCount,
		BusinessStatus: p.BusinessStatus,
		Phone:          p.InternationalPhoneNumber,
		Website:        p.WebsiteURI,
	}
	if raw.Phone == "" {
		raw.Phone = p.NationalPhoneNumber
	}
	if p.Location != nil {
		lat, lng := p.Location.Latitude, p.Location.Longitude
		raw.Latitude, raw.Longitude = &lat, &lng
	}
	if p.Rating > 0 {
		rating := p.Rating
		raw.Rating = &rating
	}
	if lvl, ok := priceLevelOrdinal(p.PriceLevel); ok {
		raw.PriceLevel = &lvl
	}
	for _, photo := range p.Photos {
		raw.PhotoRefs = append(raw.PhotoRefs, photo.Name)
	}
	if p.PriceLevel != "" {
		raw.Extras = map[string]any{"price_level_raw": p.PriceLevel}
	}
	return raw
}

// priceLevelOrdinal maps the v1 price-level enum onto the legacy 0–4 scale.
func priceLevelOrdinal(s string) (int, bool) {
	switch s {
	case "PRICE_LEVEL_FREE":
		return 0, true
	case "PRICE_LEVEL_INEXPENSIVE":
		return 1, true
	case "PRICE_LEVEL_MODERATE":
		return 2, true
	case "PRICE_LEVEL_EXPENSIVE":
		return 3, true
	case "PRICE_LEVEL_VERY_EXPENSIVE":
		return 4, true
	}
	return 0, false
}

// legacySource queries the legacy text-search endpoint.
type legacySource struct {
	client places.LegacyClient
}

// NewLegacySource wraps the legacy client as the second chain tier.
func NewLegacySource(client places.LegacyClient) Source {
	return &legacySource{client: client}
}

func (s *legacySource) Tier() Tier { return TierLegacy }

func (s *legacySource) Search(ctx context.Context, q SearchQuery) ([]RawPlace, error) {
	resp, err := s.client.TextSearch(ctx, q.Text, q.Latitude, q.Longitude, q.RadiusMeters)
	if err != nil {
		return nil, err
	}

	results := resp.Results
	if q.MaxResults > 0 && len(results) > q.MaxResults {
		results = results[:q.MaxResults]
	}

	out := make([]RawPlace, 0, len(results))
	for _, r := range results {
		raw := RawPlace{
			PlaceID:        r.PlaceID,
			Name:           r.Name,
			Address:        r.FormattedAddress,
			Types:          r.Types,
			RatingCount:    r.UserRatingsTotal,
			BusinessStatus: r.BusinessStatus,
			PriceLevel:     r.PriceLevel,
		}
		if r.Geometry != nil {
			lat, lng := r.Geometry.Location.Lat, r.Geometry.Location.Lng
			raw.Latitude, raw.Longitude = &lat, &lng
		}
		if r.Rating > 0 {
			rating := r.Rating
			raw.Rating = &rating
		}
		for _, photo := range r.Photos {
			raw.PhotoRefs = append(raw.PhotoRefs, photo.PhotoReference)
		}
		out = append(out, raw)
	}
	return out, nil
}
