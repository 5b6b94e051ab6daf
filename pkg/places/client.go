// Package places provides HTTP clients for the Google Places API: the
// current v1 endpoints and the legacy text-search endpoint kept as a
// fallback tier.
package places

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/places-cli/internal/resilience"
)

const defaultBaseURL = "https://places.googleapis.com/v1"

const searchFieldMask = "places.id,places.displayName,places.formattedAddress," +
	"places.location,places.types,places.rating,places.userRatingCount," +
	"places.businessStatus,places.priceLevel"

const detailsFieldMask = "id,displayName,formattedAddress,location,types,rating," +
	"userRatingCount,nationalPhoneNumber,internationalPhoneNumber,websiteUri," +
	"photos,businessStatus,priceLevel"

// Client performs Google Places v1 API operations.
type Client interface {
	SearchText(ctx context.Context, req SearchRequest) (*SearchResponse, error)
	Details(ctx context.Context, placeID string) (*Place, error)
}

// SearchRequest describes a text search with a location bias.
type SearchRequest struct {
	Query        string
	Latitude     float64
	Longitude    float64
	RadiusMeters float64
	MaxResults   int
}

// SearchResponse is the response from Places Text Search.
type SearchResponse struct {
	Places []Place `json:"places"`
}

// Place represents a place returned by the v1 API.
type Place struct {
	ID                       string      `json:"id"`
	DisplayName              DisplayName `json:"displayName"`
	FormattedAddress         string      `json:"formattedAddress"`
	Location                 *LatLng     `json:"location,omitempty"`
	Types                    []string    `json:"types,omitempty"`
	Rating                   float64     `json:"rating,omitempty"`
	UserRatingCount          int         `json:"userRatingCount,omitempty"`
	NationalPhoneNumber      string      `json:"nationalPhoneNumber,omitempty"`
	InternationalPhoneNumber string      `json:"internationalPhoneNumber,omitempty"`
	WebsiteURI               string      `json:"websiteUri,omitempty"`
	Photos                   []Photo     `json:"photos,omitempty"`
	BusinessStatus           string      `json:"businessStatus,omitempty"`
	PriceLevel               string      `json:"priceLevel,omitempty"`
}

// DisplayName holds the place's display name.
type DisplayName struct {
	Text string `json:"text"`
}

// LatLng holds a coordinate pair.
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Photo holds a photo reference token.
type Photo struct {
	Name string `json:"name"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit sets a client-side requests-per-second cap, independent of
// the pipeline's own throttle.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), int(rps))
	}
}

// WithRetry enables retries of transient failures (429, 5xx, network
// timeouts) under the given policy.
func WithRetry(p resilience.Policy) Option {
	return func(c *httpClient) {
		c.retry = &p
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   *resilience.Policy
}

// NewClient creates a Google Places v1 API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type textSearchRequest struct {
	TextQuery      string        `json:"textQuery"`
	MaxResultCount int           `json:"maxResultCount,omitempty"`
	LocationBias   *locationBias `json:"locationBias,omitempty"`
}

type locationBias struct {
	Circle circle `json:"circle"`
}

type circle struct {
	Center LatLng  `json:"center"`
	Radius float64 `json:"radius"`
}

func (c *httpClient) SearchText(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	payload := textSearchRequest{
		TextQuery:      req.Query,
		MaxResultCount: req.MaxResults,
	}
	if req.Latitude != 0 || req.Longitude != 0 {
		payload.LocationBias = &locationBias{
			Circle: circle{
				Center: LatLng{Latitude: req.Latitude, Longitude: req.Longitude},
				Radius: req.RadiusMeters,
			},
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrap(err, "places: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/places:searchText", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "places: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Goog-Api-Key", c.apiKey)
	httpReq.Header.Set("X-Goog-FieldMask", searchFieldMask)

	respBody, err := c.send(ctx, httpReq)
	if err != nil {
		return nil, err
	}

	var result SearchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "places: unmarshal response")
	}
	return &result, nil
}

func (c *httpClient) Details(ctx context.Context, placeID string) (*Place, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/places/"+placeID, nil)
	if err != nil {
		return nil, eris.Wrap(err, "places: create request")
	}
	httpReq.Header.Set("X-Goog-Api-Key", c.apiKey)
	httpReq.Header.Set("X-Goog-FieldMask", detailsFieldMask)

	respBody, err := c.send(ctx, httpReq)
	if err != nil {
		return nil, err
	}

	var result Place
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "places: unmarshal response")
	}
	return &result, nil
}

func (c *httpClient) send(ctx context.Context, req *http.Request) ([]byte, error) {
	if c.retry == nil {
		return c.sendOnce(ctx, req)
	}
	return resilience.Do(ctx, *c.retry, func(ctx context.Context) ([]byte, error) {
		attempt := req.Clone(ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, eris.Wrap(err, "places: rewind request body")
			}
			attempt.Body = body
		}
		return c.sendOnce(ctx, attempt)
	})
}

func (c *httpClient) sendOnce(ctx context.Context, req *http.Request) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "places: rate limit wait")
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "places: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "places: read response")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("places: unexpected status %d: %s", resp.StatusCode, string(respBody))
		if resilience.IsTransientStatus(resp.StatusCode) {
			return nil, resilience.MarkTransient(err, resp.StatusCode)
		}
		return nil, err
	}
	return respBody, nil
}
