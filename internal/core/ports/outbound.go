package ports

import (
	"context"
	"io"

	"github.com/kirillkom/apartment-recommender/internal/core/domain"
)

// ArtifactSource loads the precomputed artifact set from its backing store.
type ArtifactSource interface {
	LoadCatalog(ctx context.Context) (*domain.Catalog, error)
}

// ArtifactStore replaces a persisted artifact set. Only tooling writes; the
// serving path never does.
type ArtifactStore interface {
	SaveCatalog(ctx context.Context, catalog *domain.Catalog) error
}

// CatalogProvider hands out the process-wide catalog, loading it at most once.
type CatalogProvider interface {
	Catalog(ctx context.Context) (*domain.Catalog, error)
}

// BlobStorage stores artifact files.
type BlobStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}
