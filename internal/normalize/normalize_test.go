package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/places-cli/internal/model"
	"github.com/sells-group/places-cli/internal/provider"
)

func newTestNormalizer(t *testing.T, opts ...Option) *Normalizer {
	t.Helper()
	m, err := LoadCategoryMap(defaultCategoriesYAML)
	require.NoError(t, err)
	return New(m, opts...)
}

func TestFoldKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Abidjan", "abidjan"},
		{"  BOUAKÉ ", "bouake"},
		{"San-Pédro", "san-pedro"},
		{"Le  Marlin   Bleu", "le marlin bleu"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FoldKey(tt.in), tt.in)
	}
}

func TestCategories_Mapping(t *testing.T) {
	m, err := LoadCategoryMap(defaultCategoriesYAML)
	require.NoError(t, err)

	tests := []struct {
		name  string
		types []string
		want  []string
	}{
		{"restaurant", []string{"restaurant", "food"}, []string{"restaurant"}},
		{"multi", []string{"restaurant", "bar"}, []string{"bar", "restaurant"}},
		{"night club is a bar", []string{"night_club"}, []string{"bar"}},
		{"unknown maps to other", []string{"rocket_factory"}, []string{CategoryOther}},
		{"empty maps to other", nil, []string{CategoryOther}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Categories(tt.types))
		})
	}
}

func TestNormalize_FullRecord(t *testing.T) {
	n := newTestNormalizer(t)

	lat, lng, rating := 5.3364, -4.0267, 4.2
	price := 2
	raw := &provider.RawPlace{
		PlaceID:        "ChIJn1",
		Name:           "Nuit de Saigon",
		Address:        "Rue du Commerce, Abidjan",
		Latitude:       &lat,
		Longitude:      &lng,
		Types:          []string{"restaurant", "point_of_interest"},
		Rating:         &rating,
		RatingCount:    68,
		BusinessStatus: "OPERATIONAL",
		PriceLevel:     &price,
		Phone:          "+225 27 22 44 55 66",
		Website:        "https://nuitdesaigon.ci",
		PhotoRefs:      []string{"places/ChIJn1/photos/a"},
	}

	p := n.Normalize(raw)

	assert.Equal(t, "ChIJn1", p.PlaceID)
	assert.Equal(t, model.SourceProvider, p.Source)
	assert.Equal(t, model.StatusImported, p.Status)
	assert.Equal(t, []string{"restaurant"}, p.Categories)
	assert.Equal(t, "+2252722445566", p.Phone)
	assert.False(t, p.ImportedAt.IsZero())
	require.NoError(t, p.Validate())

	// No API key configured: photo URLs stay unresolved.
	assert.Nil(t, p.PhotoURLs)
	assert.Equal(t, raw.PhotoRefs, p.PhotoRefs)
}

func TestNormalize_PhotoURLsWithKey(t *testing.T) {
	n := newTestNormalizer(t, WithPhotoAPIKey("k123"))

	p := n.Normalize(&provider.RawPlace{
		PlaceID:   "ChIJn2",
		Name:      "Photo Place",
		PhotoRefs: []string{"places/ChIJn2/photos/x"},
	})

	require.Len(t, p.PhotoURLs, 1)
	assert.True(t, strings.HasPrefix(p.PhotoURLs[0], "https://places.googleapis.com/v1/places/ChIJn2/photos/x/media"))
	assert.Contains(t, p.PhotoURLs[0], "key=k123")
}

func TestNormalize_PhoneFallback(t *testing.T) {
	n := newTestNormalizer(t)

	p := n.Normalize(&provider.RawPlace{
		PlaceID: "ChIJn3",
		Name:    "Bad Phone",
		Phone:   "not-a-number",
	})
	assert.Equal(t, "not-a-number", p.Phone)

	p = n.Normalize(&provider.RawPlace{
		PlaceID: "ChIJn4",
		Name:    "No Phone",
	})
	assert.Empty(t, p.Phone)
}

func TestNormalize_GeometryOmitted(t *testing.T) {
	n := newTestNormalizer(t)

	p := n.Normalize(&provider.RawPlace{PlaceID: "ChIJn5", Name: "No Geometry"})
	assert.Nil(t, p.Latitude)
	assert.Nil(t, p.Longitude)
	assert.False(t, p.HasCoordinates())
	require.NoError(t, p.Validate())
}

func TestLoadCategoryMapFile_Default(t *testing.T) {
	m, err := LoadCategoryMapFile("")
	require.NoError(t, err)
	assert.Equal(t, []string{"cafe"}, m.Categories([]string{"coffee_shop"}))
}

func TestLoadCategoryMapFile_Missing(t *testing.T) {
	_, err := LoadCategoryMapFile("/nonexistent/categories.yaml")
	assert.Error(t, err)
}
