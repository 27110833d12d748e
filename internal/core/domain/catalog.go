package domain

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
)

// SimilaritySpace is one precomputed pairwise-similarity matrix over the
// property universe together with the weight used when a caller supplies none.
type SimilaritySpace struct {
	Name          string
	DefaultWeight float64
	Matrix        *mat.Dense
}

// CatalogInput is the raw artifact set handed to NewCatalog.
type CatalogInput struct {
	Properties []string
	Locations  []string
	Spaces     []SimilaritySpace
	Distances  *mat.Dense
	Source     string
}

// Catalog is the immutable artifact handle shared by every request.
// Matrices returned by its accessors must not be modified.
type Catalog struct {
	properties    []string
	propertyIndex map[string]int
	locations     []string
	locationIndex map[string]int
	spaces        []SimilaritySpace
	distances     *mat.Dense
	source        string
	loadedAt      time.Time
}

// NewCatalog validates the artifact set and takes private copies of it.
func NewCatalog(in CatalogInput) (*Catalog, error) {
	m := len(in.Properties)
	if m == 0 {
		return nil, WrapError(ErrConfiguration, "new catalog", errors.New("property universe is empty"))
	}
	propertyIndex, err := indexLabels("property", in.Properties)
	if err != nil {
		return nil, WrapError(ErrConfiguration, "new catalog", err)
	}
	if len(in.Locations) == 0 {
		return nil, WrapError(ErrConfiguration, "new catalog", errors.New("location axis is empty"))
	}
	locationIndex, err := indexLabels("location", in.Locations)
	if err != nil {
		return nil, WrapError(ErrConfiguration, "new catalog", err)
	}
	if len(in.Spaces) == 0 {
		return nil, WrapError(ErrConfiguration, "new catalog", errors.New("no similarity matrices"))
	}

	spaces := make([]SimilaritySpace, 0, len(in.Spaces))
	seen := make(map[string]int, len(in.Spaces))
	for i, space := range in.Spaces {
		name := space.Name
		if name == "" {
			name = fmt.Sprintf("space-%d", i+1)
		}
		if prev, ok := seen[name]; ok {
			return nil, WrapError(ErrConfiguration, "new catalog",
				fmt.Errorf("duplicate similarity space %q at positions %d and %d", name, prev, i))
		}
		seen[name] = i
		if space.Matrix == nil {
			return nil, WrapError(ErrConfiguration, "new catalog", fmt.Errorf("similarity matrix %d (%s) is missing", i, name))
		}
		r, c := space.Matrix.Dims()
		if r != m || c != m {
			return nil, WrapError(ErrConfiguration, "new catalog",
				fmt.Errorf("similarity matrix %d (%s): expected %dx%d, got %dx%d", i, name, m, m, r, c))
		}
		if math.IsNaN(space.DefaultWeight) || math.IsInf(space.DefaultWeight, 0) || space.DefaultWeight < 0 {
			return nil, WrapError(ErrConfiguration, "new catalog",
				fmt.Errorf("similarity matrix %d (%s): invalid default weight %v", i, name, space.DefaultWeight))
		}
		if err := checkFinite(space.Matrix, in.Properties); err != nil {
			return nil, WrapError(ErrConfiguration, "new catalog", fmt.Errorf("similarity matrix %d (%s): %w", i, name, err))
		}
		spaces = append(spaces, SimilaritySpace{
			Name:          name,
			DefaultWeight: space.DefaultWeight,
			Matrix:        mat.DenseCopyOf(space.Matrix),
		})
	}

	if in.Distances == nil {
		return nil, WrapError(ErrConfiguration, "new catalog", errors.New("distance table is missing"))
	}
	r, c := in.Distances.Dims()
	if r != m || c != len(in.Locations) {
		return nil, WrapError(ErrConfiguration, "new catalog",
			fmt.Errorf("distance table: expected %dx%d, got %dx%d", m, len(in.Locations), r, c))
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := in.Distances.At(i, j); v < 0 {
				return nil, WrapError(ErrConfiguration, "new catalog",
					fmt.Errorf("distance table: negative distance %v at (%s, %s)", v, in.Properties[i], in.Locations[j]))
			}
		}
	}

	return &Catalog{
		properties:    append([]string(nil), in.Properties...),
		propertyIndex: propertyIndex,
		locations:     append([]string(nil), in.Locations...),
		locationIndex: locationIndex,
		spaces:        spaces,
		distances:     mat.DenseCopyOf(in.Distances),
		source:        in.Source,
		loadedAt:      time.Now().UTC(),
	}, nil
}

func checkFinite(m *mat.Dense, labels []string) error {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := m.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("non-finite value %v at (%s, %s)", v, labels[i], labels[j])
			}
		}
	}
	return nil
}

func indexLabels(axis string, labels []string) (map[string]int, error) {
	index := make(map[string]int, len(labels))
	for i, label := range labels {
		if prev, ok := index[label]; ok {
			return nil, fmt.Errorf("duplicate %s identifier %q at positions %d and %d", axis, label, prev, i)
		}
		index[label] = i
	}
	return index, nil
}

func (c *Catalog) Size() int { return len(c.properties) }

// Properties returns the ordered property universe.
func (c *Catalog) Properties() []string {
	return append([]string(nil), c.properties...)
}

// Locations returns the ordered location axis of the distance table.
func (c *Catalog) Locations() []string {
	return append([]string(nil), c.locations...)
}

// PropertyIndex looks up an exact property identifier.
func (c *Catalog) PropertyIndex(name string) (int, bool) {
	i, ok := c.propertyIndex[name]
	return i, ok
}

func (c *Catalog) LocationIndex(name string) (int, bool) {
	i, ok := c.locationIndex[name]
	return i, ok
}

func (c *Catalog) Property(i int) string { return c.properties[i] }

func (c *Catalog) Spaces() []SimilaritySpace {
	return append([]SimilaritySpace(nil), c.spaces...)
}

// Matrices returns the similarity matrices in space order.
func (c *Catalog) Matrices() []*mat.Dense {
	out := make([]*mat.Dense, len(c.spaces))
	for i, space := range c.spaces {
		out[i] = space.Matrix
	}
	return out
}

func (c *Catalog) DefaultWeights() []float64 {
	out := make([]float64, len(c.spaces))
	for i, space := range c.spaces {
		out[i] = space.DefaultWeight
	}
	return out
}

// Distances returns the distance table, rows are properties and columns locations.
func (c *Catalog) Distances() *mat.Dense { return c.distances }

// DistanceColumn copies the distances of every property to location j.
func (c *Catalog) DistanceColumn(j int) []float64 {
	return mat.Col(nil, j, c.distances)
}

func (c *Catalog) Source() string { return c.source }

func (c *Catalog) LoadedAt() time.Time { return c.loadedAt }
