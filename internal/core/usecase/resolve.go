package usecase

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/kirillkom/apartment-recommender/internal/core/domain"
)

// DefaultResolveCutoff is the minimum similarity ratio for an approximate match.
const DefaultResolveCutoff = 0.6

// Resolution is a successfully resolved identifier.
type Resolution struct {
	ID    string
	Index int
	Exact bool
	Ratio float64
}

// ResolveIdentifier maps requested onto one of known. An exact, case-sensitive
// match wins. Otherwise the candidate with the highest difflib ratio is taken if
// the ratio reaches cutoff; equal ratios resolve to the lexicographically
// smallest identifier.
func ResolveIdentifier(axis, requested string, known []string, cutoff float64) (Resolution, error) {
	if err := checkCutoff(cutoff); err != nil {
		return Resolution{}, err
	}
	notFound := &domain.LookupError{Axis: axis, Requested: requested}
	if len(known) == 0 {
		return Resolution{}, notFound
	}

	for i, id := range known {
		if id == requested {
			return Resolution{ID: id, Index: i, Exact: true, Ratio: 1}, nil
		}
	}

	matcher := difflib.NewMatcher(nil, splitRunes(requested))
	best := Resolution{Index: -1}
	for i, id := range known {
		matcher.SetSeq1(splitRunes(id))
		if matcher.RealQuickRatio() < cutoff || matcher.QuickRatio() < cutoff {
			continue
		}
		ratio := matcher.Ratio()
		if ratio < cutoff {
			continue
		}
		if best.Index < 0 || ratio > best.Ratio || (ratio == best.Ratio && id < best.ID) {
			best = Resolution{ID: id, Index: i, Ratio: ratio}
		}
	}
	if best.Index < 0 {
		return Resolution{}, notFound
	}
	return best, nil
}

// resolveIndexed answers exact hits from a label index and only materializes
// the label list for the approximate scan.
func resolveIndexed(axis, requested string, index func(string) (int, bool), labels func() []string, cutoff float64) (Resolution, error) {
	if err := checkCutoff(cutoff); err != nil {
		return Resolution{}, err
	}
	if i, ok := index(requested); ok {
		return Resolution{ID: requested, Index: i, Exact: true, Ratio: 1}, nil
	}
	return ResolveIdentifier(axis, requested, labels(), cutoff)
}

func checkCutoff(cutoff float64) error {
	if cutoff < 0 || cutoff > 1 {
		return domain.WrapError(domain.ErrConfiguration, "resolve identifier",
			fmt.Errorf("cutoff must be in [0, 1], got %v", cutoff))
	}
	return nil
}

func splitRunes(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "")
}
