package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"gonum.org/v1/gonum/mat"

	"github.com/kirillkom/apartment-recommender/internal/core/domain"
	"github.com/kirillkom/apartment-recommender/internal/infrastructure/resilience"
)

var artifactColumns = []string{"name", "kind", "position", "weight", "payload"}

func newArtifactRepoWithMock(t *testing.T, executor *resilience.Executor) (*ArtifactRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return NewArtifactRepository(db, executor), mock, func() { _ = db.Close() }
}

func blob(t *testing.T, r, c int, data []float64) []byte {
	t.Helper()
	raw, err := mat.NewDense(r, c, data).MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary() error = %v", err)
	}
	return raw
}

func sectorRows(t *testing.T) *sqlmock.Rows {
	return sqlmock.NewRows(artifactColumns).
		AddRow("distances", "distances", 0, nil, blob(t, 2, 1, []float64{1200, 300})).
		AddRow("locations", "locations", 0, nil, []byte(`["Downtown"]`)).
		AddRow("properties", "properties", 0, nil, []byte(`["Sector-1-A","Sector-1-B"]`)).
		AddRow("similarity/facilities", "similarity", 0, 30.0, blob(t, 2, 2, []float64{1, 0.9, 0.9, 1})).
		AddRow("similarity/price_details", "similarity", 1, nil, blob(t, 2, 2, []float64{1, 0, 0, 1}))
}

func TestLoadCatalogDecodesArtifactRows(t *testing.T) {
	repo, mock, done := newArtifactRepoWithMock(t, nil)
	defer done()

	mock.ExpectQuery("FROM recommender_artifacts").WillReturnRows(sectorRows(t))

	catalog, err := repo.LoadCatalog(context.Background())
	if err != nil {
		t.Fatalf("LoadCatalog() error = %v", err)
	}
	if catalog.Size() != 2 || catalog.Property(1) != "Sector-1-B" {
		t.Fatalf("unexpected universe: %v", catalog.Properties())
	}
	spaces := catalog.Spaces()
	if len(spaces) != 2 || spaces[0].Name != "facilities" || spaces[0].DefaultWeight != 30 || spaces[1].DefaultWeight != 1 {
		t.Fatalf("unexpected spaces: %+v", spaces)
	}
	if catalog.Matrices()[0].At(0, 1) != 0.9 || catalog.DistanceColumn(0)[1] != 300 {
		t.Fatalf("matrices were not decoded")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLoadCatalogMissingKindsIsConfigurationError(t *testing.T) {
	repo, mock, done := newArtifactRepoWithMock(t, nil)
	defer done()

	rows := sqlmock.NewRows(artifactColumns).
		AddRow("properties", "properties", 0, nil, []byte(`["Sector-1-A"]`))
	mock.ExpectQuery("FROM recommender_artifacts").WillReturnRows(rows)

	_, err := repo.LoadCatalog(context.Background())
	if !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestLoadCatalogRetriesBrokenConnection(t *testing.T) {
	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    2,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
		BreakerEnabled:      false,
	})
	repo, mock, done := newArtifactRepoWithMock(t, executor)
	defer done()

	mock.ExpectQuery("FROM recommender_artifacts").WillReturnError(&pgconn.PgError{Code: "08006", Message: "connection failure"})
	mock.ExpectQuery("FROM recommender_artifacts").WillReturnRows(sectorRows(t))

	if _, err := repo.LoadCatalog(context.Background()); err != nil {
		t.Fatalf("LoadCatalog() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLoadCatalogDoesNotRetrySyntaxErrors(t *testing.T) {
	executor := resilience.NewExecutor(resilience.Config{RetryMaxAttempts: 3, BreakerEnabled: false})
	repo, mock, done := newArtifactRepoWithMock(t, executor)
	defer done()

	mock.ExpectQuery("FROM recommender_artifacts").WillReturnError(errors.New(`relation "recommender_artifacts" does not exist`))

	_, err := repo.LoadCatalog(context.Background())
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected a permanent error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveCatalogReplacesArtifactsInOneTransaction(t *testing.T) {
	repo, mock, done := newArtifactRepoWithMock(t, nil)
	defer done()

	catalog, err := domain.NewCatalog(domain.CatalogInput{
		Properties: []string{"Sector-1-A", "Sector-1-B"},
		Locations:  []string{"Downtown"},
		Spaces: []domain.SimilaritySpace{
			{Name: "facilities", DefaultWeight: 30, Matrix: mat.NewDense(2, 2, []float64{1, 0.9, 0.9, 1})},
		},
		Distances: mat.NewDense(2, 1, []float64{1200, 300}),
	})
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM recommender_artifacts").WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec("INSERT INTO recommender_artifacts").
		WithArgs("properties", "properties", 0, sqlmock.AnyArg(), []byte(`["Sector-1-A","Sector-1-B"]`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO recommender_artifacts").
		WithArgs("locations", "locations", 0, sqlmock.AnyArg(), []byte(`["Downtown"]`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO recommender_artifacts").
		WithArgs("distances", "distances", 0, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO recommender_artifacts").
		WithArgs("similarity/facilities", "similarity", 0, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.SaveCatalog(context.Background(), catalog); err != nil {
		t.Fatalf("SaveCatalog() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveCatalogRollsBackOnInsertFailure(t *testing.T) {
	repo, mock, done := newArtifactRepoWithMock(t, nil)
	defer done()

	catalog, err := domain.NewCatalog(domain.CatalogInput{
		Properties: []string{"Sector-1-A"},
		Locations:  []string{"Downtown"},
		Spaces:     []domain.SimilaritySpace{{Matrix: mat.NewDense(1, 1, []float64{1})}},
		Distances:  mat.NewDense(1, 1, []float64{0}),
	})
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM recommender_artifacts").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO recommender_artifacts").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	if err := repo.SaveCatalog(context.Background(), catalog); err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEnsureSchemaTakesAdvisoryLock(t *testing.T) {
	repo, mock, done := newArtifactRepoWithMock(t, nil)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs(schemaLockID).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS recommender_artifacts").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
