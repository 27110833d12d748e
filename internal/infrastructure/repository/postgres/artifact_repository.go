package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"gonum.org/v1/gonum/mat"

	"github.com/kirillkom/apartment-recommender/internal/core/domain"
	"github.com/kirillkom/apartment-recommender/internal/infrastructure/resilience"
)

const (
	kindProperties = "properties"
	kindLocations  = "locations"
	kindSimilarity = "similarity"
	kindDistances  = "distances"

	similarityPrefix = "similarity/"

	schemaLockID = int64(2026101701)
)

// ArtifactRepository keeps one artifact set in the recommender_artifacts table.
type ArtifactRepository struct {
	db       *sql.DB
	executor *resilience.Executor
}

func NewArtifactRepository(db *sql.DB, executor *resilience.Executor) *ArtifactRepository {
	return &ArtifactRepository{db: db, executor: executor}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *ArtifactRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS recommender_artifacts (
	name TEXT PRIMARY KEY,
	kind TEXT NOT NULL CHECK (kind IN ('properties', 'locations', 'similarity', 'distances')),
	position INTEGER NOT NULL DEFAULT 0,
	weight DOUBLE PRECISION,
	payload BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_recommender_artifacts_kind ON recommender_artifacts(kind, position);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *ArtifactRepository) LoadCatalog(ctx context.Context) (*domain.Catalog, error) {
	return resilience.Do(ctx, r.executor, "postgres.load_catalog", r.loadCatalog, resilience.ClassifyDomainError)
}

func (r *ArtifactRepository) loadCatalog(ctx context.Context) (*domain.Catalog, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT name, kind, position, weight, payload
FROM recommender_artifacts
ORDER BY kind, position, name
`)
	if err != nil {
		return nil, classifyQueryError("query artifacts", err)
	}
	defer rows.Close()

	var in domain.CatalogInput
	found := make(map[string]bool, 4)
	for rows.Next() {
		var (
			name     string
			kind     string
			position int
			weight   sql.NullFloat64
			payload  []byte
		)
		if err := rows.Scan(&name, &kind, &position, &weight, &payload); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		if err := decodeArtifact(&in, name, kind, weight, payload); err != nil {
			return nil, domain.WrapError(domain.ErrConfiguration, "decode artifact", err)
		}
		found[kind] = true
	}
	if err := rows.Err(); err != nil {
		return nil, classifyQueryError("iterate artifacts", err)
	}

	var missing []string
	for _, kind := range []string{kindProperties, kindLocations, kindSimilarity, kindDistances} {
		if !found[kind] {
			missing = append(missing, kind)
		}
	}
	if len(missing) > 0 {
		return nil, domain.WrapError(domain.ErrConfiguration, "load artifacts",
			fmt.Errorf("recommender_artifacts has no %s rows", strings.Join(missing, ", ")))
	}

	in.Source = "postgres:recommender_artifacts"
	return domain.NewCatalog(in)
}

func decodeArtifact(in *domain.CatalogInput, name, kind string, weight sql.NullFloat64, payload []byte) error {
	switch kind {
	case kindProperties:
		return json.Unmarshal(payload, &in.Properties)
	case kindLocations:
		return json.Unmarshal(payload, &in.Locations)
	case kindSimilarity:
		var m mat.Dense
		if err := m.UnmarshalBinary(payload); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		w := 1.0
		if weight.Valid {
			w = weight.Float64
		}
		in.Spaces = append(in.Spaces, domain.SimilaritySpace{
			Name:          strings.TrimPrefix(name, similarityPrefix),
			DefaultWeight: w,
			Matrix:        &m,
		})
		return nil
	case kindDistances:
		var m mat.Dense
		if err := m.UnmarshalBinary(payload); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		in.Distances = &m
		return nil
	default:
		return fmt.Errorf("%s: unknown artifact kind %q", name, kind)
	}
}

// SaveCatalog replaces the stored artifact set in one transaction.
func (r *ArtifactRepository) SaveCatalog(ctx context.Context, catalog *domain.Catalog) error {
	type artifactRow struct {
		name     string
		kind     string
		position int
		weight   sql.NullFloat64
		payload  []byte
	}

	properties, err := json.Marshal(catalog.Properties())
	if err != nil {
		return fmt.Errorf("marshal properties: %w", err)
	}
	locations, err := json.Marshal(catalog.Locations())
	if err != nil {
		return fmt.Errorf("marshal locations: %w", err)
	}
	distances, err := catalog.Distances().MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshal distances: %w", err)
	}
	toSave := []artifactRow{
		{name: kindProperties, kind: kindProperties, payload: properties},
		{name: kindLocations, kind: kindLocations, payload: locations},
		{name: kindDistances, kind: kindDistances, payload: distances},
	}
	for i, space := range catalog.Spaces() {
		blob, err := space.Matrix.MarshalBinary()
		if err != nil {
			return fmt.Errorf("marshal similarity %s: %w", space.Name, err)
		}
		toSave = append(toSave, artifactRow{
			name:     similarityPrefix + space.Name,
			kind:     kindSimilarity,
			position: i,
			weight:   sql.NullFloat64{Float64: space.DefaultWeight, Valid: true},
			payload:  blob,
		})
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return classifyQueryError("begin import tx", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM recommender_artifacts`); err != nil {
		return classifyQueryError("clear artifacts", err)
	}
	now := time.Now().UTC()
	for _, row := range toSave {
		_, err := tx.ExecContext(ctx, `
INSERT INTO recommender_artifacts (name, kind, position, weight, payload, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
`, row.name, row.kind, row.position, row.weight, row.payload, now)
		if err != nil {
			return classifyQueryError("insert artifact "+row.name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return classifyQueryError("commit import tx", err)
	}
	return nil
}

// classifyQueryError marks connection-level failures as temporary so the
// executor retries them.
func classifyQueryError(op string, err error) error {
	if isTransient(err) {
		return domain.WrapError(domain.ErrTemporary, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isTransient(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 08: connection exception, 57P0x: server shutting down, 40001: serialization failure.
		return strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57P0") || pgErr.Code == "40001"
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
