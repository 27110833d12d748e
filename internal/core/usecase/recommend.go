package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/kirillkom/apartment-recommender/internal/core/domain"
	"github.com/kirillkom/apartment-recommender/internal/core/ports"
)

const (
	axisProperty = "property"
	axisLocation = "location"
)

type RecommendUseCase struct {
	catalogs ports.CatalogProvider
	limits   domain.QueryLimits
}

func NewRecommendUseCase(catalogs ports.CatalogProvider, limits domain.QueryLimits) *RecommendUseCase {
	return &RecommendUseCase{
		catalogs: catalogs,
		limits:   normalizeLimits(limits),
	}
}

func normalizeLimits(limits domain.QueryLimits) domain.QueryLimits {
	if limits.DefaultTopN <= 0 {
		limits.DefaultTopN = 7
	}
	if limits.MaxTopN <= 0 {
		limits.MaxTopN = 20
	}
	if limits.MaxTopN < limits.DefaultTopN {
		limits.MaxTopN = limits.DefaultTopN
	}
	if limits.ResolveCutoff <= 0 {
		limits.ResolveCutoff = DefaultResolveCutoff
	}
	if limits.DefaultRadiusKM <= 0 {
		limits.DefaultRadiusKM = 5
	}
	if limits.MaxRadiusKM <= 0 {
		limits.MaxRadiusKM = 25
	}
	if limits.MaxRadiusKM < limits.DefaultRadiusKM {
		limits.MaxRadiusKM = limits.DefaultRadiusKM
	}
	if limits.DisplayCap <= 0 {
		limits.DisplayCap = DefaultDisplayCap
	}
	return limits
}

func (uc *RecommendUseCase) Recommend(
	ctx context.Context,
	propertyName string,
	topN int,
	weights []float64,
) (*domain.Recommendation, error) {
	if strings.TrimSpace(propertyName) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "recommend", fmt.Errorf("property name is required"))
	}
	if topN <= 0 {
		topN = uc.limits.DefaultTopN
	}
	if topN > uc.limits.MaxTopN {
		return nil, domain.WrapError(domain.ErrInvalidInput, "recommend",
			fmt.Errorf("top_n %d exceeds maximum %d", topN, uc.limits.MaxTopN))
	}

	catalog, err := uc.catalogs.Catalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	applied, err := uc.resolveWeights(catalog, weights)
	if err != nil {
		return nil, err
	}

	target, err := resolveIndexed(axisProperty, propertyName, catalog.PropertyIndex, catalog.Properties, uc.limits.ResolveCutoff)
	if err != nil {
		return nil, err
	}
	if !target.Exact {
		slog.Debug("identifier_resolved_approximately",
			"axis", axisProperty,
			"requested", propertyName,
			"resolved", target.ID,
			"ratio", target.Ratio,
		)
	}

	scores, err := FuseRow(catalog.Matrices(), applied, target.Index)
	if err != nil {
		return nil, fmt.Errorf("fuse similarity: %w", err)
	}
	ranked, err := TopK(scores, target.Index, topN)
	if err != nil {
		return nil, fmt.Errorf("rank candidates: %w", err)
	}

	results := make([]domain.ScoredProperty, 0, len(ranked))
	for i, r := range ranked {
		results = append(results, domain.ScoredProperty{
			Rank:     i + 1,
			Property: catalog.Property(r.Index),
			Score:    r.Score,
		})
	}

	return &domain.Recommendation{
		Target:    target.ID,
		Requested: propertyName,
		Exact:     target.Exact,
		Weights:   applied,
		Results:   results,
	}, nil
}

func (uc *RecommendUseCase) resolveWeights(catalog *domain.Catalog, weights []float64) ([]float64, error) {
	spaces := len(catalog.Spaces())
	if len(weights) == 0 {
		if len(uc.limits.WeightOverride) == 0 {
			return catalog.DefaultWeights(), nil
		}
		if len(uc.limits.WeightOverride) != spaces {
			return nil, domain.WrapError(domain.ErrConfiguration, "recommend",
				fmt.Errorf("configured %d weights for %d similarity matrices", len(uc.limits.WeightOverride), spaces))
		}
		return append([]float64(nil), uc.limits.WeightOverride...), nil
	}

	if len(weights) != spaces {
		return nil, domain.WrapError(domain.ErrInvalidInput, "recommend",
			fmt.Errorf("expected %d weights, got %d", spaces, len(weights)))
	}
	for i, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return nil, domain.WrapError(domain.ErrInvalidInput, "recommend",
				fmt.Errorf("weight %d must be a finite non-negative number, got %v", i, w))
		}
	}
	return append([]float64(nil), weights...), nil
}
