// Package normalize converts raw provider results into the internal
// ImportedPlace shape: category mapping, E.164 phone formatting, and photo
// URL resolution.
package normalize

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/nyaruka/phonenumbers"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/places-cli/internal/model"
	"github.com/sells-group/places-cli/internal/provider"
)

//go:embed categories.yaml
var defaultCategoriesYAML []byte

// CategoryOther is assigned when no provider type maps to a known category.
const CategoryOther = "other"

// CategoryMap maps provider taxonomy types onto internal categories.
type CategoryMap struct {
	byType map[string][]string
}

// LoadCategoryMap parses a category mapping from YAML: internal category to
// the list of provider types it covers.
func LoadCategoryMap(data []byte) (*CategoryMap, error) {
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "normalize: parse category map")
	}

	byType := make(map[string][]string)
	for category, types := range raw {
		for _, t := range types {
			byType[FoldKey(t)] = append(byType[FoldKey(t)], category)
		}
	}
	return &CategoryMap{byType: byType}, nil
}

// LoadCategoryMapFile loads a mapping from a file path, or the embedded
// default when path is empty.
func LoadCategoryMapFile(path string) (*CategoryMap, error) {
	if path == "" {
		return LoadCategoryMap(defaultCategoriesYAML)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "normalize: read category map %s", path)
	}
	return LoadCategoryMap(data)
}

// Categories derives the internal categories for a set of provider types.
// Returns [other] when nothing matches.
func (m *CategoryMap) Categories(types []string) []string {
	seen := make(map[string]bool)
	for _, t := range types {
		for _, c := range m.byType[FoldKey(t)] {
			seen[c] = true
		}
	}
	if len(seen) == 0 {
		return []string{CategoryOther}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Normalizer converts RawPlace records into ImportedPlace records.
type Normalizer struct {
	categories *CategoryMap
	apiKey     string
	region     string // ISO region for national phone parsing
	photoBase  string
}

// Option configures the Normalizer.
type Option func(*Normalizer)

// WithPhotoAPIKey enables photo URL resolution.
func WithPhotoAPIKey(key string) Option {
	return func(n *Normalizer) {
		n.apiKey = key
	}
}

// WithRegion sets the default phone region (default CI).
func WithRegion(region string) Option {
	return func(n *Normalizer) {
		n.region = region
	}
}

// New creates a Normalizer over the given category map.
func New(categories *CategoryMap, opts ...Option) *Normalizer {
	n := &Normalizer{
		categories: categories,
		region:     "CI",
		photoBase:  "https://places.googleapis.com/v1",
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Normalize builds an ImportedPlace from a raw provider record. The result
// carries imported status and provider source; the store preserves existing
// provenance on upsert.
func (n *Normalizer) Normalize(raw *provider.RawPlace) *model.ImportedPlace {
	p := &model.ImportedPlace{
		PlaceID:        raw.PlaceID,
		Name:           raw.Name,
		Address:        raw.Address,
		Latitude:       raw.Latitude,
		Longitude:      raw.Longitude,
		Phone:          n.formatPhone(raw.Phone),
		Website:        raw.Website,
		Types:          raw.Types,
		Categories:     n.categories.Categories(raw.Types),
		Rating:         raw.Rating,
		RatingCount:    raw.RatingCount,
		PhotoRefs:      raw.PhotoRefs,
		PhotoURLs:      n.photoURLs(raw.PhotoRefs),
		BusinessStatus: raw.BusinessStatus,
		PriceLevel:     raw.PriceLevel,
		Source:         model.SourceProvider,
		Status:         model.StatusImported,
		ImportedAt:     time.Now().UTC(),
		Metadata:       raw.Extras,
	}
	return p
}

// formatPhone normalizes to E.164, falling back to the raw string when the
// number does not parse.
func (n *Normalizer) formatPhone(raw string) string {
	if raw == "" {
		return ""
	}
	num, err := phonenumbers.Parse(raw, n.region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		zap.L().Debug("normalize: unparseable phone", zap.String("phone", raw))
		return raw
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}

// photoURLs resolves photo reference tokens to fetchable media URLs. Without
// an API key no URLs can be produced and the refs are kept as-is only.
func (n *Normalizer) photoURLs(refs []string) []string {
	if n.apiKey == "" || len(refs) == 0 {
		return nil
	}
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		out = append(out, fmt.Sprintf("%s/%s/media?maxWidthPx=800&key=%s", n.photoBase, ref, n.apiKey))
	}
	return out
}
