package artifacts

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/kirillkom/apartment-recommender/internal/core/domain"
	"github.com/kirillkom/apartment-recommender/internal/core/ports"
)

const (
	exportPropertiesKey = "properties.json"
	exportLocationsKey  = "locations.json"
	exportDistancesKey  = "location_distance.xlsx"
	exportDistanceSheet = "distances"
)

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

// Exporter writes a catalog out as a manifest directory that Source can load.
type Exporter struct {
	storage ports.BlobStorage
}

func NewExporter(storage ports.BlobStorage) *Exporter {
	return &Exporter{storage: storage}
}

// SaveCatalog implements ports.ArtifactStore.
func (e *Exporter) SaveCatalog(ctx context.Context, catalog *domain.Catalog) error {
	manifest := Manifest{
		Properties: exportPropertiesKey,
		Locations:  exportLocationsKey,
		Distances:  DistanceEntry{Path: exportDistancesKey, Sheet: exportDistanceSheet},
	}

	labels, err := EncodeLabels(catalog.Properties())
	if err != nil {
		return fmt.Errorf("encode properties: %w", err)
	}
	if err := e.put(ctx, exportPropertiesKey, labels); err != nil {
		return err
	}
	labels, err = EncodeLabels(catalog.Locations())
	if err != nil {
		return fmt.Errorf("encode locations: %w", err)
	}
	if err := e.put(ctx, exportLocationsKey, labels); err != nil {
		return err
	}

	for i, space := range catalog.Spaces() {
		key := fmt.Sprintf("%02d_%s.mat", i+1, unsafeKeyChars.ReplaceAllString(strings.ToLower(space.Name), "_"))
		blob, err := EncodeMatrix(space.Matrix)
		if err != nil {
			return fmt.Errorf("space %s: %w", space.Name, err)
		}
		if err := e.put(ctx, key, blob); err != nil {
			return err
		}
		weight := space.DefaultWeight
		manifest.Similarity = append(manifest.Similarity, SimilarityEntry{Name: space.Name, Path: key, Weight: &weight})
	}

	table, err := EncodeTable(LabeledTable{
		Rows:    catalog.Properties(),
		Columns: catalog.Locations(),
		Values:  catalog.Distances(),
	}, exportDistanceSheet)
	if err != nil {
		return err
	}
	if err := e.put(ctx, exportDistancesKey, table); err != nil {
		return err
	}

	// The manifest goes last so a partial export is never loadable.
	raw, err := manifest.Encode()
	if err != nil {
		return err
	}
	return e.put(ctx, DefaultManifestName, raw)
}

func (e *Exporter) put(ctx context.Context, key string, data []byte) error {
	if err := e.storage.Save(ctx, key, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
