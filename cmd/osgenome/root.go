package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/frostyslav/OSGenome/internal/config"
	"github.com/frostyslav/OSGenome/internal/logging"
	"github.com/frostyslav/OSGenome/internal/metrics"
)

// application carries the shared services built once before any subcommand
// runs.
type application struct {
	cfgFile string
	cfg     config.Config
	logger  *zap.Logger
}

func newRootCmd() *cobra.Command {
	app := &application{}

	cmd := &cobra.Command{
		Use:   "osgenome",
		Short: "Personal genome exploration using SNPedia",
		Long: `osgenome enriches a personal genome export with reference data from
SNPedia. The crawl command fetches reference records for your SNPs at a
polite request rate, checkpointing progress so interrupted runs resume
where they left off. The serve command exposes the enriched results over
HTTP.`,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(app.cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)
			metrics.Init()

			app.cfg = cfg
			app.logger = logger
			return nil
		},

		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if app.logger != nil {
				_ = app.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&app.cfgFile, "config", "", "config file path")

	cmd.AddCommand(newCrawlCmd(app))
	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newVersionCmd())

	return cmd
}
