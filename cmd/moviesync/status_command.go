package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"moviesync/internal/catalog"
	"moviesync/internal/enrichment"
	"moviesync/internal/history"
)

var stateCaser = cases.Title(language.English)

// stateLabel turns a run state such as rate_limited into "Rate Limited".
func stateLabel(state enrichment.State) string {
	if state == "" {
		return "Unknown"
	}
	return stateCaser.String(strings.ReplaceAll(string(state), "_", " "))
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var runs int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show catalog coverage and recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			logger, err := ctx.logger(cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			store, _, err := openCatalog(cfg, logger, false)
			if err != nil {
				return err
			}
			records, err := store.ReadCatalog(cmd.Context())
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("catalog %s does not exist; set paths.catalog_file", store.Path())
				}
				return err
			}
			patches, err := newOverrides(cfg, logger).ReadOverrides(cmd.Context())
			if err != nil {
				return err
			}

			stats := catalog.Summarize(records, patches.NeedsEnrichment)
			fmt.Fprintf(out, "Catalog: %s\n", store.Path())
			printStats(out, stats, patches.Len())

			if runs <= 0 {
				return nil
			}
			ledger, err := history.Open(cmd.Context(), cfg.HistoryPath())
			if err != nil {
				return fmt.Errorf("open run history: %w", err)
			}
			defer ledger.Close()
			recent, err := ledger.Recent(cmd.Context(), runs)
			if err != nil {
				return err
			}
			fmt.Fprintln(out)
			printRuns(out, recent)
			return nil
		},
	}

	cmd.Flags().IntVar(&runs, "runs", 5, "Number of recent runs to show (0 hides history)")
	return cmd
}

func printStats(out io.Writer, stats catalog.Stats, patches int) {
	rows := [][]string{
		{"Records", fmt.Sprint(stats.Total)},
		{"With TMDB id", fmt.Sprint(stats.WithTMDBID)},
		{"Enriched", fmt.Sprint(stats.Enriched)},
		{"Marked missing", fmt.Sprint(stats.Missing)},
		{"Pending", fmt.Sprint(stats.Pending)},
		{"Patches", fmt.Sprint(patches)},
	}
	fmt.Fprintln(out, renderTable(out, []string{"Catalog", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
}

func printRuns(out io.Writer, runs []history.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(out, "No enrichment runs recorded yet")
		return
	}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			run.StartedAt.Local().Format("2006-01-02 15:04"),
			stateLabel(run.State),
			fmt.Sprint(run.Enriched),
			fmt.Sprint(run.NotFound),
			fmt.Sprint(run.Failed),
			fmt.Sprint(run.Unresolved),
			fmt.Sprint(run.Checkpoints),
			run.Duration().Round(time.Second).String(),
			run.ErrorMessage,
		})
	}
	fmt.Fprintln(out, renderTable(out,
		[]string{"Started", "State", "Matched", "Not found", "Failed", "Unresolved", "Checkpoints", "Duration", "Error"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
	))
}
