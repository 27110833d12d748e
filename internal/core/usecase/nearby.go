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

const metersPerKilometer = 1000

type NearbyUseCase struct {
	catalogs ports.CatalogProvider
	limits   domain.QueryLimits
}

func NewNearbyUseCase(catalogs ports.CatalogProvider, limits domain.QueryLimits) *NearbyUseCase {
	return &NearbyUseCase{
		catalogs: catalogs,
		limits:   normalizeLimits(limits),
	}
}

func (uc *NearbyUseCase) Nearby(ctx context.Context, locationName string, radiusKM float64) (*domain.NearbyResult, error) {
	if strings.TrimSpace(locationName) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "nearby", fmt.Errorf("location name is required"))
	}
	if radiusKM == 0 {
		radiusKM = uc.limits.DefaultRadiusKM
	}
	if math.IsNaN(radiusKM) || math.IsInf(radiusKM, 0) || radiusKM < 0 || radiusKM > uc.limits.MaxRadiusKM {
		return nil, domain.WrapError(domain.ErrInvalidInput, "nearby",
			fmt.Errorf("radius_km must be in (0, %v], got %v", uc.limits.MaxRadiusKM, radiusKM))
	}

	catalog, err := uc.catalogs.Catalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	location, err := resolveIndexed(axisLocation, locationName, catalog.LocationIndex, catalog.Locations, uc.limits.ResolveCutoff)
	if err != nil {
		return nil, err
	}
	if !location.Exact {
		slog.Debug("identifier_resolved_approximately",
			"axis", axisLocation,
			"requested", locationName,
			"resolved", location.ID,
			"ratio", location.Ratio,
		)
	}

	hits := WithinRadius(catalog.DistanceColumn(location.Index), radiusKM*metersPerKilometer, uc.limits.DisplayCap)

	results := make([]domain.NearbyProperty, 0, len(hits))
	for i, hit := range hits {
		results = append(results, domain.NearbyProperty{
			Rank:           i + 1,
			Property:       catalog.Property(hit.Index),
			DistanceMeters: hit.Distance,
			DistanceKM:     hit.Distance / metersPerKilometer,
		})
	}

	return &domain.NearbyResult{
		Location:  location.ID,
		Requested: locationName,
		Exact:     location.Exact,
		RadiusKM:  radiusKM,
		Results:   results,
	}, nil
}
