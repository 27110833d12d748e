package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kirillkom/apartment-recommender/internal/bootstrap"
	"github.com/kirillkom/apartment-recommender/internal/config"
	"github.com/kirillkom/apartment-recommender/internal/infrastructure/artifacts"
	"github.com/kirillkom/apartment-recommender/internal/infrastructure/storage/localfs"
)

var errRemoteCatalog = errors.New("catalog is only available with a local artifact source")

func newImportCmd(cfg func() config.Config) *cobra.Command {
	var from, manifest string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load a manifest directory into the Postgres artifact table",
		Long: `Read the artifact set from a manifest directory, validate it and replace
the rows of the Postgres artifact table in one transaction.

Example:
  POSTGRES_DSN=postgres://... aptrec import --from ./datasets`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cfg()
			if from == "" {
				from = c.ArtifactDir
			}
			if manifest == "" {
				manifest = c.ArtifactManifest
			}
			source, err := bootstrap.NewLocalSource(from, manifest)
			if err != nil {
				return err
			}
			catalog, err := source.LoadCatalog(cmd.Context())
			if err != nil {
				return err
			}

			repo, closeDB, err := bootstrap.OpenPostgresArtifacts(cmd.Context(), c, bootstrap.NewExecutor(c, nil))
			if err != nil {
				return err
			}
			defer closeDB()
			if err := repo.SaveCatalog(cmd.Context(), catalog); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d properties, %d locations, %d similarity spaces.\n",
				catalog.Size(), len(catalog.Locations()), len(catalog.Spaces()))
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "manifest directory (default ARTIFACT_DIR)")
	cmd.Flags().StringVar(&manifest, "manifest", "", "manifest file name (default ARTIFACT_MANIFEST)")
	return cmd
}

func newExportCmd(cfg func() config.Config) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the configured artifact set out as a manifest directory",
		Long: `Load the artifact set from ARTIFACT_SOURCE and write it to a directory
as gonum matrix blobs, JSON label files, a distance workbook and a manifest.

Example:
  ARTIFACT_SOURCE=postgres aptrec export --out ./snapshot`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				return fmt.Errorf("--out is required")
			}
			c := cfg()
			source, closeSource, err := bootstrap.NewArtifactSource(cmd.Context(), c, bootstrap.NewExecutor(c, nil))
			if err != nil {
				return err
			}
			defer closeSource()

			catalog, err := source.LoadCatalog(cmd.Context())
			if err != nil {
				return err
			}
			storage, err := localfs.New(out)
			if err != nil {
				return err
			}
			if err := artifacts.NewExporter(storage).SaveCatalog(cmd.Context(), catalog); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d properties to %s\n", catalog.Size(), storage.BasePath())
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "target directory")
	return cmd
}
