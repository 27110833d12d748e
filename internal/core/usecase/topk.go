package usecase

import (
	"container/heap"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/kirillkom/apartment-recommender/internal/core/domain"
)

// RankedIndex is a candidate position in the universe with its composite score.
type RankedIndex struct {
	Index int
	Score float64
}

// TopK returns the k best candidates from scores, excluding target itself.
// Order is score descending; equal scores keep the lower index first, which is
// the order a stable descending sort over the original positions produces.
// NaN scores rank below every number.
func TopK(scores []float64, target, k int) ([]RankedIndex, error) {
	if target < 0 || target >= len(scores) {
		return nil, domain.WrapError(domain.ErrPrecondition, "top k",
			fmt.Errorf("target index %d out of range [0, %d)", target, len(scores)))
	}
	if k <= 0 {
		return []RankedIndex{}, nil
	}
	if k > len(scores)-1 {
		k = len(scores) - 1
	}

	h := make(rankedHeap, 0, k+1)
	for i, score := range scores {
		if i == target {
			continue
		}
		candidate := RankedIndex{Index: i, Score: score}
		if h.Len() < k {
			heap.Push(&h, candidate)
			continue
		}
		if rankedBefore(candidate, h[0]) {
			h[0] = candidate
			heap.Fix(&h, 0)
		}
	}

	out := []RankedIndex(h)
	sort.Slice(out, func(i, j int) bool {
		return rankedBefore(out[i], out[j])
	})
	return out, nil
}

// TopKFromMatrix ranks row target of a composite score matrix.
func TopKFromMatrix(composite *mat.Dense, target, k int) ([]RankedIndex, error) {
	r, _ := composite.Dims()
	if target < 0 || target >= r {
		return nil, domain.WrapError(domain.ErrPrecondition, "top k",
			fmt.Errorf("target index %d out of range [0, %d)", target, r))
	}
	return TopK(mat.Row(nil, target, composite), target, k)
}

// rankedBefore is the total order of the ranking: higher score first, NaN
// last, lower index first on ties.
func rankedBefore(a, b RankedIndex) bool {
	aNaN, bNaN := math.IsNaN(a.Score), math.IsNaN(b.Score)
	switch {
	case aNaN && bNaN:
		return a.Index < b.Index
	case aNaN:
		return false
	case bNaN:
		return true
	case a.Score != b.Score:
		return a.Score > b.Score
	default:
		return a.Index < b.Index
	}
}

// rankedHeap keeps the worst retained candidate at the root.
type rankedHeap []RankedIndex

func (h rankedHeap) Len() int           { return len(h) }
func (h rankedHeap) Less(i, j int) bool { return rankedBefore(h[j], h[i]) }
func (h rankedHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *rankedHeap) Push(x any) {
	*h = append(*h, x.(RankedIndex))
}

func (h *rankedHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
