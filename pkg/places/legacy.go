package places

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

const defaultLegacyBaseURL = "https://maps.googleapis.com/maps/api/place"

// LegacyClient performs searches against the legacy text-search endpoint.
// It predates the v1 API and is kept as a fallback tier only.
type LegacyClient interface {
	TextSearch(ctx context.Context, query string, lat, lng, radiusMeters float64) (*LegacyResponse, error)
}

// LegacyResponse is the legacy text-search payload.
type LegacyResponse struct {
	Results []LegacyResult `json:"results"`
	Status  string         `json:"status"`
}

// LegacyResult is one place in the legacy payload.
type LegacyResult struct {
	PlaceID          string        `json:"place_id"`
	Name             string        `json:"name"`
	FormattedAddress string        `json:"formatted_address"`
	Geometry         *Geometry     `json:"geometry,omitempty"`
	Types            []string      `json:"types,omitempty"`
	Rating           float64       `json:"rating,omitempty"`
	UserRatingsTotal int           `json:"user_ratings_total,omitempty"`
	BusinessStatus   string        `json:"business_status,omitempty"`
	PriceLevel       *int          `json:"price_level,omitempty"`
	Photos           []LegacyPhoto `json:"photos,omitempty"`
}

// Geometry holds the legacy location shape.
type Geometry struct {
	Location struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"location"`
}

// LegacyPhoto holds a legacy photo reference.
type LegacyPhoto struct {
	PhotoReference string `json:"photo_reference"`
}

// LegacyOption configures the legacy client.
type LegacyOption func(*legacyClient)

// WithLegacyBaseURL overrides the legacy API base URL.
func WithLegacyBaseURL(url string) LegacyOption {
	return func(c *legacyClient) {
		c.baseURL = url
	}
}

// WithLegacyHTTPClient overrides the default http.Client.
func WithLegacyHTTPClient(hc *http.Client) LegacyOption {
	return func(c *legacyClient) {
		c.http = hc
	}
}

type legacyClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewLegacyClient creates a legacy text-search client.
func NewLegacyClient(apiKey string, opts ...LegacyOption) LegacyClient {
	c := &legacyClient{
		apiKey:  apiKey,
		baseURL: defaultLegacyBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *legacyClient) TextSearch(ctx context.Context, query string, lat, lng, radiusMeters float64) (*LegacyResponse, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("key", c.apiKey)
	if lat != 0 || lng != 0 {
		q.Set("location", strconv.FormatFloat(lat, 'f', -1, 64)+","+strconv.FormatFloat(lng, 'f', -1, 64))
		q.Set("radius", strconv.FormatFloat(radiusMeters, 'f', 0, 64))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/textsearch/json?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "places: create legacy request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "places: send legacy request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "places: read legacy response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("places: legacy unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result LegacyResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "places: unmarshal legacy response")
	}
	if result.Status != "OK" && result.Status != "ZERO_RESULTS" {
		return nil, eris.Errorf("places: legacy status %s", result.Status)
	}
	return &result, nil
}
