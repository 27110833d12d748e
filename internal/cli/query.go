package cli

import (
	"github.com/spf13/cobra"

	"github.com/kirillkom/apartment-recommender/internal/config"
	"github.com/kirillkom/apartment-recommender/internal/core/domain"
)

func newRecommendCmd(flags *globalFlags, cfg func() config.Config) *cobra.Command {
	var (
		topN    int
		weights []float64
	)
	cmd := &cobra.Command{
		Use:   "recommend <property>",
		Short: "List the apartments most similar to a property",
		Long: `Rank every other property by a weighted sum of the similarity spaces.
Misspelled property names are resolved to the closest known identifier.

Examples:
  aptrec recommend "Sector-1-A"
  aptrec recommend "Sektor 1 A" -n 3
  aptrec recommend "Sector-1-A" --weights 1,0,0`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var w []float64
			if cmd.Flags().Changed("weights") {
				w = weights
			}
			svc, err := openServices(cmd.Context(), cfg(), flags.remote)
			if err != nil {
				return err
			}
			defer svc.close()

			rec, err := svc.recommender.Recommend(cmd.Context(), args[0], topN, w)
			if err != nil {
				return err
			}
			if flags.jsonOut {
				return writeJSON(cmd.OutOrStdout(), rec)
			}
			printRecommendation(cmd.OutOrStdout(), rec)
			return nil
		},
	}
	cmd.Flags().IntVarP(&topN, "top", "n", 0, "number of results (default from RECOMMEND_DEFAULT_TOP_N)")
	cmd.Flags().Float64SliceVar(&weights, "weights", nil, "one weight per similarity space, e.g. 30,20,8")
	return cmd
}

func newNearbyCmd(flags *globalFlags, cfg func() config.Config) *cobra.Command {
	var radiusKM float64
	cmd := &cobra.Command{
		Use:   "nearby <location>",
		Short: "List properties within a radius of a location",
		Long: `List properties strictly closer than the radius to a landmark location,
nearest first, capped at NEARBY_DISPLAY_CAP entries.

Examples:
  aptrec nearby Downtown
  aptrec nearby "Cyber City" -r 2.5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openServices(cmd.Context(), cfg(), flags.remote)
			if err != nil {
				return err
			}
			defer svc.close()

			result, err := svc.nearby.Nearby(cmd.Context(), args[0], radiusKM)
			if err != nil {
				return err
			}
			if flags.jsonOut {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			printNearby(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().Float64VarP(&radiusKM, "radius", "r", 0, "radius in kilometers (default from NEARBY_DEFAULT_RADIUS_KM)")
	return cmd
}

func newCatalogCmd(flags *globalFlags, cfg func() config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Describe the loaded artifact set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.remote {
				return domain.WrapError(domain.ErrInvalidInput, "catalog", errRemoteCatalog)
			}
			svc, err := openServices(cmd.Context(), cfg(), false)
			if err != nil {
				return err
			}
			defer svc.close()

			summary, err := svc.catalog.Describe(cmd.Context())
			if err != nil {
				return err
			}
			if flags.jsonOut {
				return writeJSON(cmd.OutOrStdout(), summary)
			}
			printCatalog(cmd.OutOrStdout(), summary)
			return nil
		},
	}
}
