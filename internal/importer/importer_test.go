package importer

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/places-cli/internal/model"
	"github.com/sells-group/places-cli/internal/normalize"
	"github.com/sells-group/places-cli/internal/provider"
	"github.com/sells-group/places-cli/internal/store"
)

type fakeProvider struct {
	places      []provider.RawPlace
	tier        provider.Tier
	searchErr   error
	detailCalls atomic.Int64
	detailErr   error
}

func (f *fakeProvider) Search(_ context.Context, _ provider.SearchQuery) (*provider.SearchResult, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return &provider.SearchResult{Places: f.places, Tier: f.tier}, nil
}

func (f *fakeProvider) Details(_ context.Context, placeID string) (*provider.RawPlace, error) {
	f.detailCalls.Add(1)
	if f.detailErr != nil {
		return nil, f.detailErr
	}
	for _, p := range f.places {
		if p.PlaceID == placeID {
			full := p
			full.Website = "https://example.ci/" + placeID
			return &full, nil
		}
	}
	return nil, &provider.ProviderError{Op: "details", PlaceID: placeID, Err: fmt.Errorf("not found")}
}

func abidjanPlaces(n int) []provider.RawPlace {
	out := make([]provider.RawPlace, 0, n)
	for i := 0; i < n; i++ {
		lat, lng := 5.3600+float64(i)*0.001, -4.0083
		out = append(out, provider.RawPlace{
			PlaceID:   fmt.Sprintf("pl-abj-%d", i),
			Name:      fmt.Sprintf("Maquis %d", i),
			Address:   fmt.Sprintf("%d Boulevard Lagunaire, Abidjan", i),
			Latitude:  &lat,
			Longitude: &lng,
			Types:     []string{"restaurant"},
		})
	}
	return out
}

func newTestOrchestrator(t *testing.T, p Provider) (*Orchestrator, store.Store) {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "import.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	categories, err := normalize.LoadCategoryMapFile("")
	require.NoError(t, err)

	return NewOrchestrator(p, normalize.New(categories), st), st
}

func TestRunImportsNewPlaces(t *testing.T) {
	fp := &fakeProvider{places: abidjanPlaces(5), tier: provider.TierPrimary}
	orch, st := newTestOrchestrator(t, fp)

	report, err := orch.Run(context.Background(), JobSpec{Location: "Abidjan", Category: "restaurant"})
	require.NoError(t, err)
	assert.Equal(t, 5, report.Found)
	assert.Equal(t, 5, report.New)
	assert.Equal(t, 0, report.Updated)
	assert.Equal(t, 0, report.Skipped)
	assert.Equal(t, 0, report.Errors)
	assert.False(t, report.Degraded)

	count, err := st.CountPlaces(context.Background(), store.PlaceFilter{})
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	got, err := st.GetByPlaceID(context.Background(), "pl-abj-0")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.StatusImported, got.Status)
	assert.Contains(t, got.Categories, "restaurant")
	assert.Equal(t, "https://example.ci/pl-abj-0", got.Website)
}

func TestRunSkipsExistingWithoutUpdate(t *testing.T) {
	fp := &fakeProvider{places: abidjanPlaces(5), tier: provider.TierPrimary}
	orch, _ := newTestOrchestrator(t, fp)

	_, err := orch.Run(context.Background(), JobSpec{Location: "Abidjan"})
	require.NoError(t, err)
	firstCalls := fp.detailCalls.Load()

	report, err := orch.Run(context.Background(), JobSpec{Location: "Abidjan"})
	require.NoError(t, err)
	assert.Equal(t, 5, report.Found)
	assert.Equal(t, 0, report.New)
	assert.Equal(t, 0, report.Updated)
	assert.Equal(t, 5, report.Skipped)

	// the skip path must not spend provider quota
	assert.Equal(t, firstCalls, fp.detailCalls.Load())
}

func TestRunUpdatesExisting(t *testing.T) {
	fp := &fakeProvider{places: abidjanPlaces(5), tier: provider.TierPrimary}
	orch, _ := newTestOrchestrator(t, fp)

	_, err := orch.Run(context.Background(), JobSpec{Location: "Abidjan"})
	require.NoError(t, err)

	report, err := orch.Run(context.Background(), JobSpec{Location: "Abidjan", UpdateExisting: true})
	require.NoError(t, err)
	assert.Equal(t, 0, report.New)
	assert.Equal(t, 5, report.Updated)
	assert.Equal(t, 0, report.Skipped)
	assert.Empty(t, report.ErrorList)
}

func TestRunUpdateRefreshesLastChecked(t *testing.T) {
	fp := &fakeProvider{places: abidjanPlaces(1), tier: provider.TierPrimary}
	orch, st := newTestOrchestrator(t, fp)

	_, err := orch.Run(context.Background(), JobSpec{Location: "Abidjan"})
	require.NoError(t, err)

	before, err := st.GetByPlaceID(context.Background(), "pl-abj-0")
	require.NoError(t, err)
	assert.Nil(t, before.LastCheckedAt)

	_, err = orch.Run(context.Background(), JobSpec{Location: "Abidjan", UpdateExisting: true})
	require.NoError(t, err)

	after, err := st.GetByPlaceID(context.Background(), "pl-abj-0")
	require.NoError(t, err)
	require.NotNil(t, after.LastCheckedAt)
	assert.Equal(t, "pl-abj-0", after.PlaceID)
	assert.Equal(t, before.ImportedAt, after.ImportedAt)
}

func TestRunDryRunWritesNothing(t *testing.T) {
	fp := &fakeProvider{places: abidjanPlaces(3), tier: provider.TierPrimary}
	orch, st := newTestOrchestrator(t, fp)

	report, err := orch.Run(context.Background(), JobSpec{Location: "Abidjan", DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 3, report.New)

	count, err := st.CountPlaces(context.Background(), store.PlaceFilter{})
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestRunSyntheticTierSkipsDetails(t *testing.T) {
	fp := &fakeProvider{places: abidjanPlaces(3), tier: provider.TierSynthetic}
	orch, _ := newTestOrchestrator(t, fp)

	report, err := orch.Run(context.Background(), JobSpec{Location: "Abidjan"})
	require.NoError(t, err)
	assert.True(t, report.Degraded)
	assert.Equal(t, 3, report.New)
	assert.Equal(t, int64(0), fp.detailCalls.Load())
}

func TestRunDetailFailureKeepsSearchResult(t *testing.T) {
	fp := &fakeProvider{
		places:    abidjanPlaces(2),
		tier:      provider.TierPrimary,
		detailErr: &provider.ProviderError{Op: "details", Err: fmt.Errorf("quota exceeded")},
	}
	orch, st := newTestOrchestrator(t, fp)

	report, err := orch.Run(context.Background(), JobSpec{Location: "Abidjan"})
	require.NoError(t, err)
	assert.Equal(t, 2, report.New)
	assert.Equal(t, 2, report.Errors)
	require.Len(t, report.ErrorList, 2)
	assert.Contains(t, report.ErrorList[0], "pl-abj-")

	got, err := st.GetByPlaceID(context.Background(), "pl-abj-0")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, got.Website)
}

func TestRunSearchFailureAborts(t *testing.T) {
	fp := &fakeProvider{searchErr: fmt.Errorf("all tiers down")}
	orch, _ := newTestOrchestrator(t, fp)

	_, err := orch.Run(context.Background(), JobSpec{Location: "Abidjan"})
	assert.Error(t, err)
}

func TestRunInvalidRecordCounted(t *testing.T) {
	places := abidjanPlaces(2)
	places[1].Name = "" // fails validation downstream
	fp := &fakeProvider{places: places, tier: provider.TierSynthetic}
	orch, _ := newTestOrchestrator(t, fp)

	report, err := orch.Run(context.Background(), JobSpec{Location: "Abidjan"})
	require.NoError(t, err)
	assert.Equal(t, 1, report.New)
	assert.Equal(t, 1, report.Errors)
}

func TestImportByCityResolvesCoordinates(t *testing.T) {
	fp := &fakeProvider{places: abidjanPlaces(1), tier: provider.TierPrimary}
	orch, _ := newTestOrchestrator(t, fp)

	report, err := orch.ImportByCity(context.Background(), "Yamoussoukro", "restaurant", false)
	require.NoError(t, err)
	assert.Equal(t, "restaurant in Yamoussoukro", report.Query)
}

func TestImportByCategory(t *testing.T) {
	fp := &fakeProvider{places: abidjanPlaces(2), tier: provider.TierPrimary}
	orch, _ := newTestOrchestrator(t, fp)

	report, err := orch.ImportByCategory(context.Background(), "cafe", "Bouaké", false)
	require.NoError(t, err)
	assert.Equal(t, "cafe in Bouaké", report.Query)
	assert.Equal(t, 2, report.New)
}

func TestImportByCoordinates(t *testing.T) {
	fp := &fakeProvider{places: abidjanPlaces(2), tier: provider.TierPrimary}
	orch, _ := newTestOrchestrator(t, fp)

	report, err := orch.ImportByCoordinates(context.Background(), 5.36, -4.0083, 2000, "pharmacie", false)
	require.NoError(t, err)
	assert.Equal(t, "pharmacie", report.Query)
	assert.Equal(t, 2, report.New)
}

func TestBulkImportIsolatesLocations(t *testing.T) {
	fp := &fakeProvider{places: abidjanPlaces(2), tier: provider.TierPrimary}
	orch, _ := newTestOrchestrator(t, fp)

	reports, err := orch.BulkImport(context.Background(), JobSpec{Category: "restaurant", UpdateExisting: true},
		[]string{"Abidjan", "Bouaké", "San Pedro"})
	require.NoError(t, err)
	require.Len(t, reports, 3)
	for _, r := range reports {
		assert.Equal(t, 2, r.Found)
	}
}

func TestBulkImportStopsOnCancel(t *testing.T) {
	fp := &fakeProvider{places: abidjanPlaces(1), tier: provider.TierPrimary}
	orch, _ := newTestOrchestrator(t, fp)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reports, err := orch.BulkImport(ctx, JobSpec{}, []string{"Abidjan", "Bouaké"})
	assert.Error(t, err)
	assert.Empty(t, reports)
}

func TestQueryDefaults(t *testing.T) {
	assert.Equal(t, "places in Abidjan", buildQuery(JobSpec{Location: "Abidjan"}))
	assert.Equal(t, "attiéké restaurant in Bouaké", buildQuery(JobSpec{Keyword: "attiéké", Category: "restaurant", Location: "Bouaké"}))
	assert.Equal(t, "places", buildQuery(JobSpec{}))
}
