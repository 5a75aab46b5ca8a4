// Package app wires configuration into the services shared by the ingest CLI
// and the API server.
package app

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/timmy/tenderkg/internal/config"
	"github.com/timmy/tenderkg/internal/episode"
	"github.com/timmy/tenderkg/internal/fetcher"
	"github.com/timmy/tenderkg/internal/filter"
	"github.com/timmy/tenderkg/internal/logger"
	"github.com/timmy/tenderkg/internal/metrics"
	"github.com/timmy/tenderkg/internal/preview"
	"github.com/timmy/tenderkg/internal/repository"
	"github.com/timmy/tenderkg/internal/service"
	"github.com/timmy/tenderkg/internal/storage"
	"gorm.io/gorm"
)

// Options override parts of the wiring. The zero value builds everything
// from configuration.
type Options struct {
	Fetcher    fetcher.DocumentFetcher // nil uses the HTTP fetcher
	Approver   preview.Approver        // nil picks one from preview config
	Registerer prometheus.Registerer   // nil skips metric registration
}

// App holds the long-lived components of one process.
type App struct {
	Config    *config.Config
	DB        *gorm.DB
	Episodes  *repository.EpisodeRepository
	Jobs      *repository.JobRepository
	Knowledge *service.KnowledgeService
	Archive   *storage.Archive // nil when archiving is disabled
	Ingest    *service.IngestService
	Metrics   *metrics.Recorder

	closers []func() error
}

// New builds the application. On error every component created so far is
// closed again.
func New(ctx context.Context, cfg *config.Config, opts Options) (_ *App, err error) {
	log := logger.FromContext(ctx).WithField(logger.FieldComponent, "app")
	a := &App{Config: cfg}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.DB, err = repository.InitDB(&cfg.Database)
	if err != nil {
		return nil, errors.Wrap(err, "init database")
	}
	a.closers = append(a.closers, func() error {
		sqlDB, err := a.DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})
	a.Episodes = repository.NewEpisodeRepository(a.DB)
	a.Jobs = repository.NewJobRepository(a.DB)

	var vectors service.VectorIndex
	var embedder service.Embedder
	if cfg.Vector.Enabled {
		qdrant, err := repository.NewQdrantRepository(&repository.QdrantConnectionConfig{
			Host:            cfg.Vector.Host,
			Port:            cfg.Vector.Port,
			Collection:      cfg.Vector.Collection,
			APIKey:          cfg.Vector.APIKey,
			UseTLS:          cfg.Vector.UseTLS,
			VectorDimension: cfg.Embedding.Dimensions,
		})
		if err != nil {
			return nil, errors.Wrap(err, "init qdrant")
		}
		a.closers = append(a.closers, qdrant.Close)
		if err := qdrant.EnsureCollection(ctx); err != nil {
			return nil, errors.Wrap(err, "ensure qdrant collection")
		}
		vectors = qdrant
		embedder = service.NewEmbeddingService(&cfg.Embedding)
		log.Infof("Vector index enabled: collection=%s, model=%s", cfg.Vector.Collection, cfg.Embedding.Model)
	}
	a.Knowledge = service.NewKnowledgeService(a.Episodes, vectors, embedder, cfg.Vector.Collection)

	if cfg.Storage.Enabled {
		store, err := storage.NewStorage(ctx, &cfg.Storage)
		if err != nil {
			return nil, errors.Wrap(err, "init storage")
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, errors.Wrap(err, "ensure storage bucket")
		}
		a.Archive = storage.NewArchive(store, cfg.Storage.Prefix)
		log.Infof("Raw page archive enabled: bucket=%s", cfg.Storage.Bucket)
	}

	f, err := filter.New(&cfg.Filter)
	if err != nil {
		return nil, err
	}

	docs := opts.Fetcher
	if docs == nil {
		httpFetcher := fetcher.New(FetcherConfig(&cfg.Fetcher))
		a.closers = append(a.closers, httpFetcher.Close)
		docs = httpFetcher
	}

	a.Metrics = metrics.NewRecorder(opts.Registerer)

	deps := service.IngestDeps{
		Fetcher: docs,
		Store:   a.Knowledge,
		Filter:  f,
		Preview: preview.NewGate(&cfg.Preview, opts.Approver),
		Jobs:    a.Jobs,
		Metrics: a.Metrics,
	}
	if a.Archive != nil {
		deps.Archive = a.Archive
	}
	a.Ingest, err = service.NewIngestService(deps, &service.IngestConfig{
		Workers:           cfg.Processing.Workers,
		BatchSize:         cfg.Processing.BatchSize,
		MaxRecordedErrors: cfg.Processing.MaxRecordedErrors,
		Episode: episode.Options{
			IncludeSections:      cfg.Processing.IncludeSections,
			IncludeEntitySummary: cfg.Processing.IncludeEntitySummary,
		},
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// FetcherConfig maps the fetcher section of the configuration.
func FetcherConfig(cfg *config.FetcherConfig) *fetcher.Config {
	out := &fetcher.Config{
		BaseURL:       cfg.BaseURL,
		PathTemplate:  cfg.PathTemplate,
		Timeout:       cfg.Timeout,
		UserAgent:     cfg.UserAgent,
		Accept:        cfg.Accept,
		RatePerSecond: cfg.RatePerSecond,
		RateBurst:     cfg.RateBurst,
	}
	if cfg.MaxRetries > 0 {
		policy := fetcher.DefaultRetryPolicy()
		policy.MaxAttempts = cfg.MaxRetries
		if cfg.JitterMax > 0 {
			policy.Jitter = fetcher.UniformJitter(cfg.JitterMin, cfg.JitterMax)
		}
		out.Policy = policy
	}
	return out
}

// Close releases components in reverse creation order.
func (a *App) Close() error {
	var errs error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}
	a.closers = nil
	return errs
}
