// Package importer orchestrates provider searches into the place store:
// search, enrich with details, normalize, and upsert, with per-place error
// isolation so one bad record never sinks a job.
package importer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/places-cli/internal/geo"
	"github.com/sells-group/places-cli/internal/normalize"
	"github.com/sells-group/places-cli/internal/provider"
	"github.com/sells-group/places-cli/internal/store"
)

const (
	defaultRadiusMeters = 10_000
	defaultMaxResults   = 60
	importWorkers       = 4

	// City-wide imports cast a wider net than point searches.
	cityRadiusMeters = 25_000
	cityMaxResults   = 100
)

// Provider is the slice of the provider adapter the orchestrator needs.
type Provider interface {
	Search(ctx context.Context, q provider.SearchQuery) (*provider.SearchResult, error)
	Details(ctx context.Context, placeID string) (*provider.RawPlace, error)
}

// JobSpec describes one import job.
type JobSpec struct {
	Location       string  // free-text location, appended to the query
	Latitude       float64 // bias center; 0,0 means no bias
	Longitude      float64
	RadiusMeters   float64
	Category       string // internal category or provider type keyword
	Keyword        string
	MaxResults     int
	UpdateExisting bool
	DryRun         bool
}

// Report summarizes a finished job.
type Report struct {
	Query     string        `json:"query"`
	Found     int           `json:"found"`
	New       int           `json:"new"`
	Updated   int           `json:"updated"`
	Skipped   int           `json:"skipped"`
	Errors    int           `json:"errors"`
	ErrorList []string      `json:"error_list,omitempty"`
	Degraded  bool          `json:"degraded"`
	Duration  time.Duration `json:"duration"`
}

// errorSink collects per-place failures from concurrent workers.
type errorSink struct {
	mu      sync.Mutex
	entries []string
}

func (s *errorSink) add(placeID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, fmt.Sprintf("%s: %v", placeID, err))
}

// Orchestrator runs import jobs against a provider and a store.
type Orchestrator struct {
	provider   Provider
	normalizer *normalize.Normalizer
	store      store.Store
}

// NewOrchestrator creates an import orchestrator.
func NewOrchestrator(p Provider, n *normalize.Normalizer, st store.Store) *Orchestrator {
	return &Orchestrator{provider: p, normalizer: n, store: st}
}

// Run executes one job: a single search, then a bounded worker pool that
// enriches and upserts each result. Per-place failures are counted in the
// report, not returned; only search failure or context cancellation aborts.
func (o *Orchestrator) Run(ctx context.Context, job JobSpec) (*Report, error) {
	log := zap.L().With(zap.String("component", "importer"))
	start := time.Now()

	query := buildQuery(job)
	result, err := o.provider.Search(ctx, provider.SearchQuery{
		Text:         query,
		Latitude:     job.Latitude,
		Longitude:    job.Longitude,
		RadiusMeters: radiusOrDefault(job.RadiusMeters),
		MaxResults:   maxOrDefault(job.MaxResults),
	})
	if err != nil {
		return nil, eris.Wrapf(err, "importer: search %q", query)
	}

	if result.Degraded() {
		log.Warn("job running on degraded provider data", zap.String("query", query))
	}

	var created, updated, skipped atomic.Int64
	var sink errorSink

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(importWorkers)

	for _, raw := range result.Places {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			existing, err := o.store.GetByPlaceID(gctx, raw.PlaceID)
			if err != nil {
				log.Error("lookup failed", zap.String("place_id", raw.PlaceID), zap.Error(err))
				sink.add(raw.PlaceID, err)
				return nil
			}
			if existing != nil && !job.UpdateExisting {
				skipped.Add(1)
				return nil
			}

			enriched := o.enrich(gctx, raw, result.Tier, &sink)
			rec := o.normalizer.Normalize(&enriched)
			if existing != nil {
				now := time.Now().UTC()
				rec.LastCheckedAt = &now
			}
			if err := rec.Validate(); err != nil {
				log.Error("normalized record invalid",
					zap.String("place_id", raw.PlaceID),
					zap.Error(err),
				)
				sink.add(raw.PlaceID, err)
				return nil
			}

			if job.DryRun {
				if existing != nil {
					updated.Add(1)
				} else {
					created.Add(1)
				}
				return nil
			}

			inserted, err := o.store.UpsertPlace(gctx, rec)
			if err != nil {
				log.Error("upsert failed", zap.String("place_id", raw.PlaceID), zap.Error(err))
				sink.add(raw.PlaceID, err)
				return nil
			}
			if inserted {
				created.Add(1)
			} else {
				updated.Add(1)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "importer: job aborted")
	}

	report := &Report{
		Query:     query,
		Found:     len(result.Places),
		New:       int(created.Load()),
		Updated:   int(updated.Load()),
		Skipped:   int(skipped.Load()),
		Errors:    len(sink.entries),
		ErrorList: sink.entries,
		Degraded:  result.Degraded(),
		Duration:  time.Since(start),
	}

	log.Info("import job finished",
		zap.String("query", query),
		zap.Int("found", report.Found),
		zap.Int("new", report.New),
		zap.Int("updated", report.Updated),
		zap.Int("skipped", report.Skipped),
		zap.Int("errors", report.Errors),
		zap.Bool("degraded", report.Degraded),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

// enrich fetches full details for a search hit. Synthetic placeholders have
// no upstream record, and a detail miss should not drop a place we already
// hold partial data for, so both fall back to the search result.
func (o *Orchestrator) enrich(ctx context.Context, raw provider.RawPlace, tier provider.Tier, sink *errorSink) provider.RawPlace {
	if tier == provider.TierSynthetic {
		return raw
	}

	full, err := o.provider.Details(ctx, raw.PlaceID)
	if err != nil {
		zap.L().Warn("detail fetch failed, keeping search result",
			zap.String("component", "importer"),
			zap.String("place_id", raw.PlaceID),
			zap.Error(err),
		)
		sink.add(raw.PlaceID, err)
		return raw
	}
	return *full
}

// ImportByCity imports places of one category around a named city. Unknown
// cities resolve to the default metro.
func (o *Orchestrator) ImportByCity(ctx context.Context, city, category string, update bool) (*Report, error) {
	c := geo.Resolve(city)
	return o.Run(ctx, JobSpec{
		Location:       c.Name,
		Latitude:       c.Latitude,
		Longitude:      c.Longitude,
		RadiusMeters:   cityRadiusMeters,
		Category:       category,
		MaxResults:     cityMaxResults,
		UpdateExisting: update,
	})
}

// ImportByCategory imports all places of one internal category around a
// named city. Unlike ImportByCity it keeps the tighter point-search radius.
func (o *Orchestrator) ImportByCategory(ctx context.Context, category, city string, update bool) (*Report, error) {
	c := geo.Resolve(city)
	return o.Run(ctx, JobSpec{
		Location:       c.Name,
		Latitude:       c.Latitude,
		Longitude:      c.Longitude,
		Category:       category,
		UpdateExisting: update,
	})
}

// ImportByCoordinates imports places matching a keyword around a point.
func (o *Orchestrator) ImportByCoordinates(ctx context.Context, lat, lng, radius float64, keyword string, update bool) (*Report, error) {
	return o.Run(ctx, JobSpec{
		Latitude:       lat,
		Longitude:      lng,
		RadiusMeters:   radius,
		Keyword:        keyword,
		UpdateExisting: update,
	})
}

// BulkImport runs one job per location, sequentially, isolating failures per
// location. A cancelled context stops the remaining locations.
func (o *Orchestrator) BulkImport(ctx context.Context, base JobSpec, locations []string) ([]*Report, error) {
	log := zap.L().With(zap.String("component", "importer"))
	reports := make([]*Report, 0, len(locations))

	for _, loc := range locations {
		if err := ctx.Err(); err != nil {
			return reports, eris.Wrap(err, "importer: bulk import cancelled")
		}

		c := geo.Resolve(loc)
		job := base
		job.Location = c.Name
		job.Latitude = c.Latitude
		job.Longitude = c.Longitude

		report, err := o.Run(ctx, job)
		if err != nil {
			if ctx.Err() != nil {
				return reports, eris.Wrap(err, "importer: bulk import cancelled")
			}
			log.Error("bulk location failed", zap.String("location", loc), zap.Error(err))
			reports = append(reports, &Report{
				Query:     buildQuery(job),
				Errors:    1,
				ErrorList: []string{err.Error()},
			})
			continue
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func buildQuery(job JobSpec) string {
	parts := make([]string, 0, 3)
	if job.Keyword != "" {
		parts = append(parts, job.Keyword)
	}
	if job.Category != "" {
		parts = append(parts, job.Category)
	}
	if len(parts) == 0 {
		parts = append(parts, "places")
	}
	if job.Location != "" {
		parts = append(parts, fmt.Sprintf("in %s", job.Location))
	}
	return strings.Join(parts, " ")
}

func radiusOrDefault(r float64) float64 {
	if r <= 0 {
		return defaultRadiusMeters
	}
	return r
}

func maxOrDefault(n int) int {
	if n <= 0 {
		return defaultMaxResults
	}
	return n
}
