package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/kirillkom/apartment-recommender/internal/config"
	"github.com/kirillkom/apartment-recommender/internal/core/domain"
	"github.com/kirillkom/apartment-recommender/internal/core/ports"
	"github.com/kirillkom/apartment-recommender/internal/core/usecase"
	"github.com/kirillkom/apartment-recommender/internal/infrastructure/artifacts"
	"github.com/kirillkom/apartment-recommender/internal/infrastructure/queue/nats"
	"github.com/kirillkom/apartment-recommender/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/apartment-recommender/internal/infrastructure/resilience"
	"github.com/kirillkom/apartment-recommender/internal/infrastructure/storage/localfs"
)

type App struct {
	Config config.Config

	Catalogs    *artifacts.OnceProvider
	Recommender ports.Recommender
	Nearby      ports.NearbyFinder
	CatalogUC   ports.CatalogReader
	Executor    *resilience.Executor

	closeFn func()
}

type Option func(*options)

type options struct {
	onCatalogLoaded func(*domain.Catalog)
	onBreakerChange func(operation, state string)
}

// WithCatalogHook runs fn once the catalog has been loaded.
func WithCatalogHook(fn func(*domain.Catalog)) Option {
	return func(o *options) {
		o.onCatalogLoaded = fn
	}
}

// WithBreakerHook observes circuit breaker transitions.
func WithBreakerHook(fn func(operation, state string)) Option {
	return func(o *options) {
		o.onBreakerChange = fn
	}
}

// New wires the local use cases over the configured artifact source. With
// ARTIFACT_EAGER_LOAD the catalog is loaded before New returns so a broken
// artifact set fails startup.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	executor := NewExecutor(cfg, o.onBreakerChange)
	source, closeSource, err := NewArtifactSource(ctx, cfg, executor)
	if err != nil {
		return nil, err
	}

	var providerOpts []artifacts.ProviderOption
	if o.onCatalogLoaded != nil {
		providerOpts = append(providerOpts, artifacts.WithLoadHook(o.onCatalogLoaded))
	}
	provider := artifacts.NewOnceProvider(source, providerOpts...)

	limits := cfg.QueryLimits()
	app := &App{
		Config:      cfg,
		Catalogs:    provider,
		Recommender: usecase.NewRecommendUseCase(provider, limits),
		Nearby:      usecase.NewNearbyUseCase(provider, limits),
		CatalogUC:   usecase.NewCatalogUseCase(provider),
		Executor:    executor,
		closeFn:     closeSource,
	}

	if cfg.ArtifactEagerLoad {
		if err := provider.Warm(ctx); err != nil {
			app.Close()
			return nil, fmt.Errorf("load catalog: %w", err)
		}
	}
	return app, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func NewExecutor(cfg config.Config, onStateChange func(operation, state string)) *resilience.Executor {
	resCfg := cfg.Resilience()
	resCfg.OnStateChange = onStateChange
	return resilience.NewExecutor(resCfg)
}

// NewArtifactSource selects the artifact backend named by ARTIFACT_SOURCE.
func NewArtifactSource(ctx context.Context, cfg config.Config, executor *resilience.Executor) (ports.ArtifactSource, func(), error) {
	switch cfg.ArtifactSource {
	case config.ArtifactSourceLocalFS:
		source, err := NewLocalSource(cfg.ArtifactDir, cfg.ArtifactManifest)
		if err != nil {
			return nil, nil, err
		}
		return source, func() {}, nil
	case config.ArtifactSourcePostgres:
		repo, closeDB, err := OpenPostgresArtifacts(ctx, cfg, executor)
		if err != nil {
			return nil, nil, err
		}
		return repo, closeDB, nil
	default:
		return nil, nil, domain.WrapError(domain.ErrConfiguration, "select artifact source",
			fmt.Errorf("unknown ARTIFACT_SOURCE %q", cfg.ArtifactSource))
	}
}

func NewLocalSource(dir, manifest string) (*artifacts.Source, error) {
	storage, err := localfs.New(dir)
	if err != nil {
		return nil, fmt.Errorf("init artifact storage: %w", err)
	}
	return artifacts.NewSource(storage, manifest, "localfs:"+storage.BasePath()), nil
}

// OpenPostgresArtifacts opens the artifact table, creating it when missing.
func OpenPostgresArtifacts(ctx context.Context, cfg config.Config, executor *resilience.Executor) (*postgres.ArtifactRepository, func(), error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewArtifactRepository(db, executor)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ensure schema: %w", err)
	}
	return repo, func() { _ = db.Close() }, nil
}

// Remote is a client of the worker fleet over NATS.
type Remote struct {
	Recommender ports.Recommender
	Nearby      ports.NearbyFinder

	closeFn func()
}

func NewRemote(cfg config.Config, clientName string) (*Remote, error) {
	conn, err := nats.Connect(cfg.NATSURL, nats.ConnectOptions{Name: clientName})
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	client := nats.NewClient(
		conn,
		nats.NewSubjects(cfg.NATSSubjectPrefix),
		time.Duration(cfg.NATSRequestTimeoutMS)*time.Millisecond,
		NewExecutor(cfg, nil),
	)
	return &Remote{
		Recommender: client,
		Nearby:      client,
		closeFn:     conn.Close,
	}, nil
}

func (r *Remote) Close() {
	if r.closeFn != nil {
		r.closeFn()
	}
}
