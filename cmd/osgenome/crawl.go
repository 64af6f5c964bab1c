package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/frostyslav/OSGenome/internal/checkpoint"
	"github.com/frostyslav/OSGenome/internal/crawl"
	"github.com/frostyslav/OSGenome/internal/enrich"
	"github.com/frostyslav/OSGenome/internal/snpedia"
)

func newCrawlCmd(app *application) *cobra.Command {
	var snpsFile string

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Fetch SNPedia records for the SNPs in a genome export",
		Long: `Reads a SNP file and fetches the SNPedia reference record for each
identifier. The file is either a JSON object mapping rsids to genotypes
(a personal genome export) or a plain JSON array of rsids. Progress is
checkpointed; rerunning skips identifiers that already completed.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd.Context(), app, snpsFile)
		},
	}

	cmd.Flags().StringVar(&snpsFile, "snps", "", "path to the SNP file (required)")
	_ = cmd.MarkFlagRequired("snps")

	return cmd
}

func runCrawl(parent context.Context, app *application, snpsFile string) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	personal, rsids, err := readSNPFile(snpsFile)
	if err != nil {
		return err
	}

	store, err := checkpoint.NewStore(app.cfg.Data.CheckpointFile)
	if err != nil {
		return fmt.Errorf("init checkpoint store: %w", err)
	}

	fetcher := snpedia.New(snpedia.Config{
		BaseURL:   app.cfg.SNPedia.BaseURL,
		UserAgent: app.cfg.SNPedia.UserAgent,
		Timeout:   app.cfg.RequestTimeout(),
	}, app.logger.Named("snpedia"))

	orch, err := crawl.New(store, fetcher, crawl.Config{
		Concurrency:     app.cfg.Crawler.Concurrency,
		MaxInFlight:     app.cfg.MaxInFlight(),
		RequestDelay:    app.cfg.RequestDelay(),
		RequestTimeout:  app.cfg.RequestTimeout(),
		MaxRetries:      app.cfg.Crawler.MaxRetries,
		RetryBaseDelay:  app.cfg.RetryBaseDelay(),
		RetryMaxDelay:   app.cfg.RetryMaxDelay(),
		CheckpointEvery: app.cfg.Crawler.CheckpointInterval,
	}, nil, app.logger.Named("crawl"))
	if err != nil {
		return fmt.Errorf("init orchestrator: %w", err)
	}

	summary, runErr := orch.Run(ctx, rsids)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("crawl: %w", runErr)
	}

	app.logger.Info("crawl summary",
		zap.String("run_id", summary.RunID),
		zap.Int("requested", summary.Requested),
		zap.Int("skipped", summary.Skipped),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("not_found", summary.NotFound),
		zap.Int("retries", summary.Retries),
		zap.Strings("exhausted", summary.Exhausted),
	)

	if len(personal) > 0 {
		if err := writeResultTable(app, personal, summary); err != nil {
			return err
		}
	}

	if errors.Is(runErr, context.Canceled) {
		app.logger.Warn("crawl interrupted; completed work is checkpointed")
	}
	return nil
}

// readSNPFile accepts either an rsid-to-genotype object or a bare rsid
// array.
func readSNPFile(path string) (map[string]string, []string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read snp file: %w", err)
	}

	var personal map[string]string
	if err := json.Unmarshal(raw, &personal); err == nil {
		rsids := make([]string, 0, len(personal))
		for rsid := range personal {
			rsids = append(rsids, rsid)
		}
		sort.Strings(rsids)
		return personal, rsids, nil
	}

	var rsids []string
	if err := json.Unmarshal(raw, &rsids); err != nil {
		return nil, nil, fmt.Errorf("parse snp file %s: expected a JSON object or array", path)
	}
	return nil, rsids, nil
}

// writeResultTable builds the enriched table from the personal genotypes
// and the crawl results and writes it next to the other derived datasets.
func writeResultTable(app *application, personal map[string]string, summary crawl.Summary) error {
	entries := enrich.BuildEntries(personal, summary.Results)

	raw, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result table: %w", err)
	}

	if err := os.MkdirAll(app.cfg.Data.Dir, 0o750); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	path := filepath.Join(app.cfg.Data.Dir, "result_table.json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write result table: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace result table: %w", err)
	}

	app.logger.Info("result table written",
		zap.String("path", path),
		zap.Int("entries", len(entries)),
	)
	return nil
}
