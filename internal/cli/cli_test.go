package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/kirillkom/apartment-recommender/internal/config"
	"github.com/kirillkom/apartment-recommender/internal/core/domain"
	"github.com/kirillkom/apartment-recommender/internal/infrastructure/artifacts"
	"github.com/kirillkom/apartment-recommender/internal/infrastructure/storage/localfs"
)

type recommenderFake struct {
	property string
	topN     int
	weights  []float64
	err      error
}

func (f *recommenderFake) Recommend(_ context.Context, property string, topN int, weights []float64) (*domain.Recommendation, error) {
	f.property, f.topN, f.weights = property, topN, weights
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Recommendation{
		Target:    "Sector-1-A",
		Requested: property,
		Exact:     property == "Sector-1-A",
		Results: []domain.ScoredProperty{
			{Rank: 1, Property: "Sector-1-B", Score: 0.912345},
			{Rank: 2, Property: "Sector-2-A", Score: 0},
		},
	}, nil
}

type nearbyFake struct {
	radiusKM float64
	results  []domain.NearbyProperty
}

func (f *nearbyFake) Nearby(_ context.Context, location string, radiusKM float64) (*domain.NearbyResult, error) {
	f.radiusKM = radiusKM
	if radiusKM == 0 {
		radiusKM = 5
	}
	return &domain.NearbyResult{Location: location, Requested: location, Exact: true, RadiusKM: radiusKM, Results: f.results}, nil
}

func useFakes(t *testing.T, rec *recommenderFake, near *nearbyFake) *bool {
	t.Helper()
	remote := new(bool)
	previous := openServices
	openServices = func(_ context.Context, _ config.Config, r bool) (*services, error) {
		*remote = r
		return &services{recommender: rec, nearby: near, close: func() {}}, nil
	}
	t.Cleanup(func() { openServices = previous })
	return remote
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRecommendCommandFormatsScores(t *testing.T) {
	rec := &recommenderFake{}
	useFakes(t, rec, &nearbyFake{})

	out, err := run(t, "recommend", "Sektor 1 A", "-n", "2", "--weights", "30,20,8")
	if err != nil {
		t.Fatalf("recommend error = %v", err)
	}
	if rec.topN != 2 || !reflect.DeepEqual(rec.weights, []float64{30, 20, 8}) {
		t.Fatalf("unexpected use case input: %+v", rec)
	}
	for _, want := range []string{`Sector-1-A (matched "Sektor 1 A")`, "Sector-1-B", "0.9123", "0.0000"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestRecommendCommandLeavesWeightsUnsetByDefault(t *testing.T) {
	rec := &recommenderFake{}
	useFakes(t, rec, &nearbyFake{})

	if _, err := run(t, "recommend", "Sector-1-A"); err != nil {
		t.Fatalf("recommend error = %v", err)
	}
	if rec.weights != nil || rec.topN != 0 {
		t.Fatalf("expected defaults, got topN=%d weights=%v", rec.topN, rec.weights)
	}
}

func TestNearbyCommandFormatsKilometers(t *testing.T) {
	near := &nearbyFake{results: []domain.NearbyProperty{
		{Rank: 1, Property: "Sector-2-A", DistanceMeters: 300, DistanceKM: 0.3},
		{Rank: 2, Property: "Sector-1-A", DistanceMeters: 1234, DistanceKM: 1.234},
	}}
	remote := useFakes(t, &recommenderFake{}, near)

	out, err := run(t, "--remote", "nearby", "Downtown", "-r", "1.5")
	if err != nil {
		t.Fatalf("nearby error = %v", err)
	}
	if !*remote {
		t.Fatalf("expected remote services")
	}
	for _, want := range []string{"within 1.50 km of Downtown", "0.30 km", "1.23 km"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestNearbyCommandReportsEmptyResult(t *testing.T) {
	useFakes(t, &recommenderFake{}, &nearbyFake{results: []domain.NearbyProperty{}})

	out, err := run(t, "nearby", "Airport")
	if err != nil {
		t.Fatalf("nearby error = %v", err)
	}
	if !strings.Contains(out, "No properties within 5.00 km of Airport") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestRecommendCommandJSONOutput(t *testing.T) {
	useFakes(t, &recommenderFake{}, &nearbyFake{})

	out, err := run(t, "--json", "recommend", "Sector-1-A")
	if err != nil {
		t.Fatalf("recommend error = %v", err)
	}
	if !strings.Contains(out, `"target": "Sector-1-A"`) {
		t.Fatalf("expected JSON output, got:\n%s", out)
	}
}

func TestCommandErrorsMapToExitCodes(t *testing.T) {
	rec := &recommenderFake{err: domain.WrapError(domain.ErrNotFound, "recommend", &domain.LookupError{Axis: "property", Requested: "X"})}
	useFakes(t, rec, &nearbyFake{})

	_, err := run(t, "recommend", "X")
	if code := exitCode(err); code != 2 {
		t.Fatalf("expected exit code 2, got %d (%v)", code, err)
	}
	if code := exitCode(domain.WrapError(domain.ErrTemporary, "nats.recommend", errors.New("timeout"))); code != 3 {
		t.Fatalf("expected exit code 3, got %d", code)
	}
	if code := exitCode(domain.WrapError(domain.ErrConfiguration, "load", errors.New("bad"))); code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
}

func TestCatalogCommandRejectsRemote(t *testing.T) {
	useFakes(t, &recommenderFake{}, &nearbyFake{})

	if _, err := run(t, "--remote", "catalog"); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestExportCommandWritesManifestDirectory(t *testing.T) {
	src := t.TempDir()
	catalog, err := domain.NewCatalog(domain.CatalogInput{
		Properties: []string{"A", "B"},
		Locations:  []string{"Downtown"},
		Spaces:     []domain.SimilaritySpace{{Name: "facilities", DefaultWeight: 1, Matrix: mat.NewDense(2, 2, []float64{1, 0.5, 0.5, 1})}},
		Distances:  mat.NewDense(2, 1, []float64{100, 200}),
	})
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}
	storage, err := localfs.New(src)
	if err != nil {
		t.Fatalf("localfs.New() error = %v", err)
	}
	if err := artifacts.NewExporter(storage).SaveCatalog(context.Background(), catalog); err != nil {
		t.Fatalf("SaveCatalog() error = %v", err)
	}

	t.Setenv("ARTIFACT_SOURCE", "localfs")
	t.Setenv("ARTIFACT_DIR", src)
	dst := filepath.Join(t.TempDir(), "snapshot")

	out, err := run(t, "export", "--out", dst)
	if err != nil {
		t.Fatalf("export error = %v", err)
	}
	if !strings.Contains(out, "Exported 2 properties") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(dst, artifacts.DefaultManifestName)); err != nil {
		t.Fatalf("expected manifest in export dir: %v", err)
	}
}
