// Package cli provides the aptrec command-line interface.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kirillkom/apartment-recommender/internal/bootstrap"
	"github.com/kirillkom/apartment-recommender/internal/config"
	"github.com/kirillkom/apartment-recommender/internal/core/ports"
	"github.com/kirillkom/apartment-recommender/internal/observability/logging"
)

// Version is set at build time.
var Version = "0.1.0"

type globalFlags struct {
	remote   bool
	jsonOut  bool
	logLevel string
}

// services are the query backends a command talks to. catalog is nil in
// remote mode.
type services struct {
	recommender ports.Recommender
	nearby      ports.NearbyFinder
	catalog     ports.CatalogReader
	close       func()
}

// openServices is replaced in tests.
var openServices = func(ctx context.Context, cfg config.Config, remote bool) (*services, error) {
	if remote {
		r, err := bootstrap.NewRemote(cfg, "aptrec")
		if err != nil {
			return nil, err
		}
		return &services{recommender: r.Recommender, nearby: r.Nearby, close: r.Close}, nil
	}
	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &services{
		recommender: app.Recommender,
		nearby:      app.Nearby,
		catalog:     app.CatalogUC,
		close:       app.Close,
	}, nil
}

// NewRootCommand builds a fresh command tree.
func NewRootCommand() *cobra.Command {
	flags := &globalFlags{}
	var cfg config.Config

	root := &cobra.Command{
		Use:   "aptrec",
		Short: "Query similar apartments and nearby properties",
		Long: `aptrec answers the two recommender queries from the command line:
similar properties for a given property, and properties within a radius
of a landmark location.

By default the artifact set is loaded locally (ARTIFACT_SOURCE). With
--remote the queries go to the worker fleet over NATS instead.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg = config.Load()
			cfg.ArtifactEagerLoad = false
			level := flags.logLevel
			if level == "" {
				level = "warn"
			}
			logger, _, err := logging.NewLogger("aptrec", level, cmd.ErrOrStderr(), "")
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			return nil
		},
	}

	root.PersistentFlags().BoolVar(&flags.remote, "remote", false, "send queries to the NATS worker fleet")
	root.PersistentFlags().BoolVar(&flags.jsonOut, "json", false, "print raw JSON results")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level for diagnostics on stderr (default warn)")

	cfgFn := func() config.Config { return cfg }
	root.AddCommand(newRecommendCmd(flags, cfgFn))
	root.AddCommand(newNearbyCmd(flags, cfgFn))
	root.AddCommand(newCatalogCmd(flags, cfgFn))
	root.AddCommand(newImportCmd(cfgFn))
	root.AddCommand(newExportCmd(cfgFn))
	return root
}

// Execute runs the CLI and reports errors on stderr.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitCode(err)
	}
	return 0
}
