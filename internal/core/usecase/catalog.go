package usecase

import (
	"context"
	"fmt"
	"slices"

	"github.com/kirillkom/apartment-recommender/internal/core/domain"
	"github.com/kirillkom/apartment-recommender/internal/core/ports"
)

type CatalogUseCase struct {
	catalogs ports.CatalogProvider
}

func NewCatalogUseCase(catalogs ports.CatalogProvider) *CatalogUseCase {
	return &CatalogUseCase{catalogs: catalogs}
}

func (uc *CatalogUseCase) Describe(ctx context.Context) (*domain.CatalogSummary, error) {
	catalog, err := uc.catalogs.Catalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	spaces := catalog.Spaces()
	summaries := make([]domain.SpaceSummary, 0, len(spaces))
	for _, space := range spaces {
		summaries = append(summaries, domain.SpaceSummary{
			Name:          space.Name,
			DefaultWeight: space.DefaultWeight,
		})
	}

	return &domain.CatalogSummary{
		Properties: sortedUnique(catalog.Properties()),
		Locations:  sortedUnique(catalog.Locations()),
		Spaces:     summaries,
		Size:       catalog.Size(),
		Source:     catalog.Source(),
		LoadedAt:   catalog.LoadedAt(),
	}, nil
}

func sortedUnique(labels []string) []string {
	slices.Sort(labels)
	return slices.Compact(labels)
}
