package usecase

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/kirillkom/apartment-recommender/internal/core/domain"
)

// FuseSimilarity returns the composite score matrix sum_t weights[t]*matrices[t].
// Weights are applied as given, without normalization.
func FuseSimilarity(matrices []*mat.Dense, weights []float64) (*mat.Dense, error) {
	m, err := checkFusionInputs(matrices, weights)
	if err != nil {
		return nil, err
	}

	composite := mat.NewDense(m, m, nil)
	dst := composite.RawMatrix()
	for t, matrix := range matrices {
		src := matrix.RawMatrix()
		if dst.Stride == src.Stride {
			floats.AddScaled(dst.Data, weights[t], src.Data[:len(dst.Data)])
			continue
		}
		for i := 0; i < m; i++ {
			floats.AddScaled(composite.RawRowView(i), weights[t], matrix.RawRowView(i))
		}
	}
	return composite, nil
}

// FuseRow returns row `row` of the composite score matrix without building the
// other M-1 rows.
func FuseRow(matrices []*mat.Dense, weights []float64, row int) ([]float64, error) {
	m, err := checkFusionInputs(matrices, weights)
	if err != nil {
		return nil, err
	}
	if row < 0 || row >= m {
		return nil, domain.WrapError(domain.ErrPrecondition, "fuse row",
			fmt.Errorf("row %d out of range [0, %d)", row, m))
	}

	out := make([]float64, m)
	for t, matrix := range matrices {
		floats.AddScaled(out, weights[t], matrix.RawRowView(row))
	}
	return out, nil
}

func checkFusionInputs(matrices []*mat.Dense, weights []float64) (int, error) {
	if len(matrices) == 0 {
		return 0, domain.WrapError(domain.ErrConfiguration, "fuse similarity", errors.New("no similarity matrices"))
	}
	if len(matrices) != len(weights) {
		return 0, domain.WrapError(domain.ErrConfiguration, "fuse similarity",
			fmt.Errorf("got %d weights for %d similarity matrices", len(weights), len(matrices)))
	}

	var m int
	for t, matrix := range matrices {
		if matrix == nil {
			return 0, domain.WrapError(domain.ErrConfiguration, "fuse similarity", fmt.Errorf("similarity matrix %d is nil", t))
		}
		r, c := matrix.Dims()
		if r != c {
			return 0, domain.WrapError(domain.ErrConfiguration, "fuse similarity",
				fmt.Errorf("similarity matrix %d is not square: %dx%d", t, r, c))
		}
		if t == 0 {
			m = r
			continue
		}
		if r != m {
			return 0, domain.WrapError(domain.ErrConfiguration, "fuse similarity",
				fmt.Errorf("similarity matrix %d: expected %dx%d, got %dx%d", t, m, m, r, c))
		}
	}
	return m, nil
}
