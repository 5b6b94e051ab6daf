package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/places-cli/internal/importer"
	"github.com/sells-group/places-cli/internal/normalize"
	"github.com/sells-group/places-cli/internal/provider"
	"github.com/sells-group/places-cli/internal/ratelimit"
	"github.com/sells-group/places-cli/internal/store"
	"github.com/sells-group/places-cli/pkg/places"
)

func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.ValidateStore(); err != nil {
		return nil, err
	}

	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.SQLitePath)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func initAdapter() (*provider.Adapter, error) {
	if err := cfg.ValidateProvider(); err != nil {
		return nil, err
	}

	opts := []places.Option{places.WithRetry(cfg.Provider.RetryPolicy())}
	if cfg.Provider.BaseURL != "" {
		opts = append(opts, places.WithBaseURL(cfg.Provider.BaseURL))
	}

	limiter := ratelimit.New(cfg.Provider.RPSBudget)
	return provider.NewDefaultAdapter(cfg.Provider.APIKey, limiter, opts...), nil
}

func initNormalizer() (*normalize.Normalizer, error) {
	categories, err := normalize.LoadCategoryMapFile(cfg.Import.CategoryMapPath)
	if err != nil {
		return nil, err
	}
	return normalize.New(categories,
		normalize.WithPhotoAPIKey(cfg.Provider.APIKey),
		normalize.WithRegion(cfg.Import.Region),
	), nil
}

func initOrchestrator(ctx context.Context) (*importer.Orchestrator, store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}

	adapter, err := initAdapter()
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}

	normalizer, err := initNormalizer()
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}

	return importer.NewOrchestrator(adapter, normalizer, st), st, nil
}
