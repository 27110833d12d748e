package artifacts

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kirillkom/apartment-recommender/internal/core/domain"
	"github.com/kirillkom/apartment-recommender/internal/core/ports"
)

// OnceProvider loads the catalog from its source on first use and hands the
// same handle to every caller afterwards. A failed load is remembered too,
// except when it failed because the caller's context ended.
type OnceProvider struct {
	source ports.ArtifactSource
	onLoad func(*domain.Catalog)

	mu      sync.Mutex
	done    bool
	catalog *domain.Catalog
	err     error
	ready   atomic.Bool
}

type ProviderOption func(*OnceProvider)

// WithLoadHook registers fn to run once after a successful load.
func WithLoadHook(fn func(*domain.Catalog)) ProviderOption {
	return func(p *OnceProvider) {
		p.onLoad = fn
	}
}

func NewOnceProvider(source ports.ArtifactSource, opts ...ProviderOption) *OnceProvider {
	p := &OnceProvider{source: source}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *OnceProvider) Catalog(ctx context.Context) (*domain.Catalog, error) {
	if p.ready.Load() {
		return p.catalog, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return p.catalog, p.err
	}

	started := time.Now()
	catalog, err := p.source.LoadCatalog(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		slog.Error("catalog_load_failed", "error", err)
		p.done = true
		p.err = err
		return nil, err
	}

	p.catalog = catalog
	p.done = true
	p.ready.Store(true)
	slog.Info("catalog_loaded",
		"source", catalog.Source(),
		"properties", catalog.Size(),
		"locations", len(catalog.Locations()),
		"spaces", len(catalog.Spaces()),
		"duration_ms", float64(time.Since(started).Microseconds())/1000.0,
	)
	if p.onLoad != nil {
		p.onLoad(catalog)
	}
	return catalog, nil
}

// Warm forces the load, for use at process start.
func (p *OnceProvider) Warm(ctx context.Context) error {
	_, err := p.Catalog(ctx)
	return err
}

// Ready reports whether a catalog has been loaded successfully.
func (p *OnceProvider) Ready() bool {
	return p.ready.Load()
}
