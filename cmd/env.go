package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadflow/internal/enrich"
	"github.com/sells-group/leadflow/internal/leadgen"
	"github.com/sells-group/leadflow/internal/store"
	anthropicpkg "github.com/sells-group/leadflow/pkg/anthropic"
	"github.com/sells-group/leadflow/pkg/perplexity"
)

// appEnv holds the initialized store and pipeline components shared by
// the serve/discover/bulk commands.
type appEnv struct {
	Store      store.Store
	Catalog    *leadgen.Catalog
	Importer   *leadgen.Importer
	Enricher   *enrich.Enricher
	Supervisor *enrich.Supervisor
	Bulk       *enrich.BulkRunner
}

// Close releases resources held by the environment. Background
// enrichment units are waited out first so their writes land.
func (e *appEnv) Close() {
	if e.Supervisor != nil {
		e.Supervisor.Wait()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "leadflow.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEnv validates the configuration for mode, sets up the store and
// API clients, and wires the pipeline. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	catalog := leadgen.DefaultCatalog()
	if cfg.Discovery.SegmentsPath != "" {
		catalog, err = leadgen.LoadCatalog(cfg.Discovery.SegmentsPath)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
	}

	perplexityClient := perplexity.NewClient(cfg.Perplexity.Key,
		perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
		perplexity.WithModel(cfg.Perplexity.Model),
	)
	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)

	enricher := enrich.NewEnricher(st, perplexityClient, anthropicClient, enrich.Config{
		HaikuModel:  cfg.Anthropic.HaikuModel,
		SonnetModel: cfg.Anthropic.SonnetModel,
	})
	supervisor := enrich.NewSupervisor(enricher, cfg.Enrich.MaxConcurrent)

	generator := leadgen.NewGenerator(leadgen.NewSearcher(perplexityClient), catalog, cfg.Discovery.Delay())
	importer := leadgen.NewImporter(st, generator, supervisor.Spawn)

	return &appEnv{
		Store:      st,
		Catalog:    catalog,
		Importer:   importer,
		Enricher:   enricher,
		Supervisor: supervisor,
		Bulk:       enrich.NewBulkRunner(st, enricher),
	}, nil
}
