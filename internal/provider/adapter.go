package provider

import (
	"context"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/places-cli/internal/ratelimit"
	"github.com/sells-group/places-cli/internal/resilience"
	"github.com/sells-group/places-cli/pkg/places"
)

// Adapter runs searches through the fallback chain and detail fetches
// against the primary client. Every outbound call passes through the shared
// rate limiter and bumps the request counter.
type Adapter struct {
	sources  []Source
	details  places.Client
	limiter  *ratelimit.Limiter
	requests atomic.Int64
}

// NewAdapter builds an adapter over the given chain. Sources are tried in
// order; the last one is expected to be the synthetic tier so Search cannot
// fail.
func NewAdapter(sources []Source, details places.Client, limiter *ratelimit.Limiter) *Adapter {
	return &Adapter{
		sources: sources,
		details: details,
		limiter: limiter,
	}
}

// NewDefaultAdapter wires the standard three-tier chain from an API key.
// The primary client retries transient failures before the chain falls
// through to the next tier.
func NewDefaultAdapter(apiKey string, limiter *ratelimit.Limiter, opts ...places.Option) *Adapter {
	opts = append([]places.Option{places.WithRetry(resilience.DefaultPolicy())}, opts...)
	client := places.NewClient(apiKey, opts...)
	return NewAdapter(
		[]Source{
			NewPrimarySource(client),
			NewLegacySource(places.NewLegacyClient(apiKey)),
			NewSyntheticSource(),
		},
		client,
		limiter,
	)
}

// Requests returns the number of outbound provider calls made so far.
func (a *Adapter) Requests() int64 {
	return a.requests.Load()
}

// Search tries each tier once, in order, returning the first success. Tier
// failures are logged with cause, not retried. Only context cancellation can
// make Search fail once the synthetic tier is in the chain.
func (a *Adapter) Search(ctx context.Context, q SearchQuery) (*SearchResult, error) {
	log := zap.L().With(zap.String("component", "provider.adapter"))

	var lastErr error
	for _, src := range a.sources {
		if err := a.acquire(ctx); err != nil {
			return nil, err
		}

		found, err := src.Search(ctx, q)
		if err != nil {
			log.Warn("search tier failed",
				zap.String("tier", string(src.Tier())),
				zap.String("query", q.Text),
				zap.Error(err),
			)
			lastErr = err
			continue
		}

		if src.Tier() != TierPrimary {
			log.Info("search served by fallback tier",
				zap.String("tier", string(src.Tier())),
				zap.Int("results", len(found)),
			)
		}
		return &SearchResult{Places: found, Tier: src.Tier()}, nil
	}

	return nil, eris.Wrap(lastErr, "provider: all search tiers failed")
}

// Details fetches the full record for one place from the primary endpoint.
// Failures are returned as *ProviderError so callers can record them
// per place without aborting a job.
func (a *Adapter) Details(ctx context.Context, placeID string) (*RawPlace, error) {
	if err := a.acquire(ctx); err != nil {
		return nil, err
	}

	p, err := a.details.Details(ctx, placeID)
	if err != nil {
		return nil, &ProviderError{Op: "details", PlaceID: placeID, Err: err}
	}

	raw := fromV1Place(*p)
	return &raw, nil
}

func (a *Adapter) acquire(ctx context.Context) error {
	if a.limiter != nil {
		if err := a.limiter.Acquire(ctx); err != nil {
			return err
		}
	}
	a.requests.Add(1)
	return nil
}
