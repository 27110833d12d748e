package usecase

import (
	"context"
	"reflect"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/kirillkom/apartment-recommender/internal/core/domain"
)

func TestCatalogDescribeSortsLabels(t *testing.T) {
	catalog, err := domain.NewCatalog(domain.CatalogInput{
		Properties: []string{"Sector-2-A", "Sector-1-B", "Sector-1-A"},
		Locations:  []string{"Downtown", "Airport"},
		Spaces: []domain.SimilaritySpace{
			{Name: "facilities", DefaultWeight: 30, Matrix: identityWith(3, 0, 0, 0)},
			{DefaultWeight: 8, Matrix: identityWith(3, 0, 0, 0)},
		},
		Distances: mat.NewDense(3, 2, nil),
		Source:    "manifest.yaml",
	})
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}
	uc := NewCatalogUseCase(&catalogProviderFake{catalog: catalog})

	summary, err := uc.Describe(context.Background())
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if !reflect.DeepEqual(summary.Properties, []string{"Sector-1-A", "Sector-1-B", "Sector-2-A"}) {
		t.Fatalf("unexpected properties: %v", summary.Properties)
	}
	if !reflect.DeepEqual(summary.Locations, []string{"Airport", "Downtown"}) {
		t.Fatalf("unexpected locations: %v", summary.Locations)
	}
	if summary.Size != 3 || summary.Source != "manifest.yaml" {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	wantSpaces := []domain.SpaceSummary{{Name: "facilities", DefaultWeight: 30}, {Name: "space-2", DefaultWeight: 8}}
	if !reflect.DeepEqual(summary.Spaces, wantSpaces) {
		t.Fatalf("expected %v, got %v", wantSpaces, summary.Spaces)
	}

	// Describe must not reorder the catalog's own universe.
	if catalog.Property(0) != "Sector-2-A" {
		t.Fatalf("catalog universe was mutated: %v", catalog.Properties())
	}
}
