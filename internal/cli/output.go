package cli

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"github.com/kirillkom/apartment-recommender/internal/core/domain"
)

// exitCode distinguishes user mistakes from broken artifacts and outages.
func exitCode(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrNotFound), domain.IsKind(err, domain.ErrInvalidInput):
		return 2
	case domain.IsKind(err, domain.ErrTemporary):
		return 3
	default:
		return 1
	}
}

func writeJSON(w io.Writer, v any) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	_, err = fmt.Fprintln(w, string(payload))
	return err
}

func matchNote(requested string, exact bool) string {
	if exact {
		return ""
	}
	return fmt.Sprintf(" (matched %q)", requested)
}

func printRecommendation(w io.Writer, rec *domain.Recommendation) {
	fmt.Fprintf(w, "Apartments similar to %s%s:\n", rec.Target, matchNote(rec.Requested, rec.Exact))
	if len(rec.Results) == 0 {
		fmt.Fprintln(w, "No other properties in the catalog.")
		return
	}
	for _, r := range rec.Results {
		fmt.Fprintf(w, "%3d. %-40s %.4f\n", r.Rank, r.Property, r.Score)
	}
}

func printNearby(w io.Writer, result *domain.NearbyResult) {
	note := matchNote(result.Requested, result.Exact)
	if len(result.Results) == 0 {
		fmt.Fprintf(w, "No properties within %.2f km of %s%s.\n", result.RadiusKM, result.Location, note)
		return
	}
	fmt.Fprintf(w, "Properties within %.2f km of %s%s:\n", result.RadiusKM, result.Location, note)
	for _, r := range result.Results {
		fmt.Fprintf(w, "%3d. %-40s %.2f km\n", r.Rank, r.Property, r.DistanceKM)
	}
}

func printCatalog(w io.Writer, summary *domain.CatalogSummary) {
	fmt.Fprintf(w, "Source:     %s\n", summary.Source)
	fmt.Fprintf(w, "Loaded:     %s\n", summary.LoadedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Properties: %d\n", summary.Size)
	fmt.Fprintf(w, "Locations:  %d\n", len(summary.Locations))
	fmt.Fprintln(w, "Similarity spaces:")
	for _, s := range summary.Spaces {
		fmt.Fprintf(w, "  - %s (default weight %g)\n", s.Name, s.DefaultWeight)
	}
}
