package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"moviesync/internal/config"
	"moviesync/internal/enrichment"
	"moviesync/internal/history"
	"moviesync/internal/justwatch"
	"moviesync/internal/logging"
)

// historyKeep bounds the run ledger.
const historyKeep = 200

func newEnrichCommand(ctx *commandContext) *cobra.Command {
	var checkpointInterval int
	var skipHistory bool

	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Fill missing JustWatch ids in the catalog",
		Long: `Walk the catalog once and search JustWatch for every record that has a TMDB id
but no JustWatch id or path. A result is accepted only when its TMDB id matches
the record exactly. Matches are saved every checkpoint_interval successes and at
the end of the run.

If JustWatch starts refusing requests, the run stops early, saves what it has,
lists what is still unresolved, and exits successfully. Run it again later to
continue.

Examples:
  moviesync enrich
  moviesync enrich --checkpoint-interval 10
  moviesync enrich --log-level debug`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			logger, err := ctx.logger(cfg)
			if err != nil {
				return err
			}

			interval := cfg.Enrichment.CheckpointInterval
			if cmd.Flags().Changed("checkpoint-interval") {
				if checkpointInterval <= 0 {
					return fmt.Errorf("--checkpoint-interval must be positive")
				}
				interval = checkpointInterval
			}

			client, err := newSearchClient(cfg)
			if err != nil {
				return err
			}
			return runEnrich(cmd.Context(), cmd.OutOrStdout(), cfg, logger, client, interval, !skipHistory)
		},
	}

	cmd.Flags().IntVar(&checkpointInterval, "checkpoint-interval", 0, "Matches between catalog writes (default: enrichment.checkpoint_interval)")
	cmd.Flags().BoolVar(&skipHistory, "no-history", false, "Do not record this run in the history ledger")
	return cmd
}

func runEnrich(ctx context.Context, out io.Writer, cfg *config.Config, logger *slog.Logger, searcher justwatch.Searcher, interval int, recordHistory bool) error {
	store, release, err := openCatalog(cfg, logger, true)
	if err != nil {
		return err
	}
	defer release()

	reconciler, err := enrichment.New(store, newOverrides(cfg, logger), searcher,
		enrichment.WithLogger(logger),
		enrichment.WithCheckpointInterval(interval),
	)
	if err != nil {
		return err
	}

	summary, runErr := reconciler.Run(ctx)
	if recordHistory {
		appendHistory(ctx, cfg, logger, summary, runErr)
	}

	printSummary(out, summary)
	if runErr != nil {
		return fmt.Errorf("enrichment failed: %w", runErr)
	}
	return nil
}

// appendHistory records the run. Ledger problems are logged, never returned:
// the catalog outcome is what decides the exit status.
func appendHistory(ctx context.Context, cfg *config.Config, logger *slog.Logger, summary enrichment.Summary, runErr error) {
	if errors.Is(runErr, context.Canceled) {
		ctx = context.WithoutCancel(ctx)
	}
	warn := func(err error) {
		logging.WarnWithContext(logger, "run history not recorded", "history_write_failed",
			logging.Error(err),
			logging.String("path", cfg.HistoryPath()),
			logging.String(logging.FieldErrorHint, "check permissions on paths.state_dir"),
			logging.String(logging.FieldImpact, "status will not show this run"))
	}

	store, err := history.Open(ctx, cfg.HistoryPath())
	if err != nil {
		warn(err)
		return
	}
	defer store.Close()

	if _, err := store.Append(ctx, history.FromSummary(summary, runErr)); err != nil {
		warn(err)
		return
	}
	if removed, err := store.Prune(ctx, historyKeep); err != nil {
		warn(err)
	} else if removed > 0 {
		logger.Debug("pruned run history", logging.Int64("removed", removed))
	}
}

func printSummary(out io.Writer, summary enrichment.Summary) {
	fmt.Fprintf(out, "Run %s: %s\n", summary.RunID, stateLabel(summary.State))
	rows := [][]string{
		{"Records", fmt.Sprint(summary.Total)},
		{"Skipped", fmt.Sprint(summary.Skipped)},
		{"Matched", fmt.Sprint(summary.Enriched)},
		{"Not found", fmt.Sprint(summary.NotFound)},
		{"Search failures", fmt.Sprint(summary.Failed)},
		{"Still unresolved", fmt.Sprint(summary.Unresolved)},
		{"Catalog writes", fmt.Sprint(summary.Writes)},
		{"Periodic checkpoints", fmt.Sprint(summary.Checkpoints)},
		{"Duration", summary.Duration().Round(time.Millisecond).String()},
	}
	fmt.Fprintln(out, renderTable(out, []string{"Metric", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))
	if summary.State == enrichment.StateRateLimited {
		fmt.Fprintln(out, "JustWatch limited requests; run enrich again later to continue.")
	}
}
