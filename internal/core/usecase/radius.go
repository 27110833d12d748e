package usecase

import "sort"

// DefaultDisplayCap is the number of nearby results surfaced by default.
const DefaultDisplayCap = 15

type RadiusHit struct {
	Index    int
	Distance float64
}

// WithinRadius selects entries strictly closer than threshold, nearest first,
// truncated to displayCap. A displayCap <= 0 disables truncation. The filter is
// unit-agnostic: threshold and distances share whatever unit the caller uses.
func WithinRadius(distances []float64, threshold float64, displayCap int) []RadiusHit {
	hits := make([]RadiusHit, 0, 16)
	for i, d := range distances {
		// NaN compares false and is never inside the radius.
		if d < threshold {
			hits = append(hits, RadiusHit{Index: i, Distance: d})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})

	return trimHits(hits, displayCap)
}

func trimHits(hits []RadiusHit, limit int) []RadiusHit {
	if limit <= 0 || len(hits) <= limit {
		return hits
	}
	return hits[:limit]
}
