package ports

import (
	"context"

	"github.com/kirillkom/apartment-recommender/internal/core/domain"
)

// Recommender is the inbound contract for similar-apartment recommendations.
type Recommender interface {
	Recommend(ctx context.Context, propertyName string, topN int, weights []float64) (*domain.Recommendation, error)
}

// NearbyFinder is the inbound contract for radius queries around a location.
type NearbyFinder interface {
	Nearby(ctx context.Context, locationName string, radiusKM float64) (*domain.NearbyResult, error)
}

// CatalogReader is the inbound read model over the loaded artifact set.
type CatalogReader interface {
	Describe(ctx context.Context) (*domain.CatalogSummary, error)
}
