package artifacts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/kirillkom/apartment-recommender/internal/core/domain"
	"github.com/kirillkom/apartment-recommender/internal/core/ports"
)

// Source loads an artifact set described by a manifest from blob storage.
type Source struct {
	storage     ports.BlobStorage
	manifestKey string
	description string
}

func NewSource(storage ports.BlobStorage, manifestKey, description string) *Source {
	if manifestKey == "" {
		manifestKey = DefaultManifestName
	}
	if description == "" {
		description = manifestKey
	}
	return &Source{storage: storage, manifestKey: manifestKey, description: description}
}

func (s *Source) LoadCatalog(ctx context.Context) (*domain.Catalog, error) {
	raw, err := s.read(ctx, s.manifestKey)
	if err != nil {
		return nil, err
	}
	manifest, err := ParseManifest(bytes.NewReader(raw))
	if err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "load manifest", err)
	}
	in, err := s.loadInput(ctx, manifest)
	if err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "load artifacts", err)
	}
	in.Source = s.description
	return domain.NewCatalog(in)
}

func (s *Source) loadInput(ctx context.Context, m Manifest) (domain.CatalogInput, error) {
	var in domain.CatalogInput

	data, err := s.read(ctx, m.Properties)
	if err != nil {
		return in, err
	}
	if in.Properties, err = DecodeLabels(m.Properties, data); err != nil {
		return in, err
	}

	if m.Locations != "" {
		data, err := s.read(ctx, m.Locations)
		if err != nil {
			return in, err
		}
		if in.Locations, err = DecodeLabels(m.Locations, data); err != nil {
			return in, err
		}
	}

	for i, entry := range m.Similarity {
		data, err := s.read(ctx, entry.Path)
		if err != nil {
			return in, err
		}
		matrix, err := DecodeMatrix(entry.Path, data)
		if err != nil {
			return in, fmt.Errorf("similarity[%d]: %w", i, err)
		}
		in.Spaces = append(in.Spaces, domain.SimilaritySpace{
			Name:          entry.Name,
			DefaultWeight: entry.DefaultWeight(),
			Matrix:        matrix,
		})
	}

	data, err = s.read(ctx, m.Distances.Path)
	if err != nil {
		return in, err
	}
	distances, locations, err := decodeDistances(m.Distances, data, in.Properties)
	if err != nil {
		return in, err
	}
	in.Distances = distances
	if locations != nil {
		if in.Locations != nil && !slices.Equal(in.Locations, locations) {
			return in, fmt.Errorf("%s: header labels do not match %s", m.Distances.Path, m.Locations)
		}
		in.Locations = locations
	}
	return in, nil
}

// decodeDistances returns the distance table and, for spreadsheets, the
// location labels taken from its header row.
func decodeDistances(entry DistanceEntry, data []byte, properties []string) (*mat.Dense, []string, error) {
	if !isSpreadsheet(entry.Path) {
		m, err := DecodeMatrix(entry.Path, data)
		return m, nil, err
	}
	table, err := DecodeTable(entry.Path, data, entry.Sheet)
	if err != nil {
		return nil, nil, err
	}
	if !slices.Equal(table.Rows, properties) {
		return nil, nil, fmt.Errorf("%s: row labels must equal the property universe in order", entry.Path)
	}
	return table.Values, table.Columns, nil
}

func (s *Source) read(ctx context.Context, key string) ([]byte, error) {
	rc, err := s.storage.Open(ctx, key)
	if err != nil {
		// Flattened so a missing file reads as a configuration problem, not a lookup miss.
		return nil, domain.WrapError(domain.ErrConfiguration, "read artifact", fmt.Errorf("%s: %v", key, err))
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "read artifact", fmt.Errorf("%s: %v", key, err))
	}
	return data, nil
}
