//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gonum.org/v1/gonum/mat"

	"github.com/kirillkom/apartment-recommender/internal/core/domain"
	"github.com/kirillkom/apartment-recommender/internal/infrastructure/resilience"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	t.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "recommender",
				"POSTGRES_PASSWORD": "recommender",
				"POSTGRES_DB":       "recommender",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	if host == "" || host == "null" {
		host = "localhost"
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}
	return fmt.Sprintf("postgres://recommender:recommender@%s:%s/recommender?sslmode=disable", host, port.Port())
}

func TestArtifactRepositoryRoundTrip(t *testing.T) {
	db, err := OpenDB(startPostgres(t))
	if err != nil {
		t.Fatalf("OpenDB() error = %v", err)
	}
	defer db.Close()

	repo := NewArtifactRepository(db, resilience.NewExecutor(resilience.DefaultConfig()))
	ctx := context.Background()
	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}

	catalog, err := domain.NewCatalog(domain.CatalogInput{
		Properties: []string{"Sector-1-A", "Sector-1-B", "Sector-2-A"},
		Locations:  []string{"Downtown", "Airport"},
		Spaces: []domain.SimilaritySpace{
			{Name: "facilities", DefaultWeight: 30, Matrix: mat.NewDense(3, 3, []float64{1, 0.9, 0, 0.9, 1, 0, 0, 0, 1})},
			{Name: "price_details", DefaultWeight: 20, Matrix: mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})},
		},
		Distances: mat.NewDense(3, 2, []float64{1200, 100, 6000, 200, 300, 300}),
	})
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}

	// Saving twice must replace, not duplicate.
	for i := 0; i < 2; i++ {
		if err := repo.SaveCatalog(ctx, catalog); err != nil {
			t.Fatalf("SaveCatalog() error = %v", err)
		}
	}

	loaded, err := repo.LoadCatalog(ctx)
	if err != nil {
		t.Fatalf("LoadCatalog() error = %v", err)
	}
	if loaded.Size() != 3 || len(loaded.Spaces()) != 2 || loaded.Spaces()[1].Name != "price_details" {
		t.Fatalf("unexpected catalog: %v %+v", loaded.Properties(), loaded.Spaces())
	}
	if !mat.Equal(loaded.Distances(), catalog.Distances()) {
		t.Fatalf("distances changed in round trip")
	}
}
