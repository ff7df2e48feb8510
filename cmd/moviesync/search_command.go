package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"moviesync/internal/catalog"
	"moviesync/internal/matching"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var tmdbID int64

	cmd := &cobra.Command{
		Use:   "search <title>",
		Short: "Show what JustWatch returns for a title",
		Long: `Run the same title search enrich uses and print every candidate with its
TMDB cross-references. With --tmdb-id, the candidate enrich would accept is
marked. The catalog is not read or modified.

Examples:
  moviesync search "Le Fabuleux Destin d'Amélie Poulain"
  moviesync search Alien --tmdb-id 348`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			client, err := newSearchClient(cfg)
			if err != nil {
				return err
			}

			title := strings.Join(args, " ")
			candidates, err := client.SearchTitles(cmd.Context(), title)
			if err != nil {
				return fmt.Errorf("search %q: %w", title, err)
			}

			out := cmd.OutOrStdout()
			if len(candidates) == 0 {
				fmt.Fprintf(out, "No JustWatch results for %q\n", title)
				return nil
			}

			var matchID int64
			if tmdbID > 0 {
				match, ok, err := matching.Match(&catalog.Record{Title: title, TMDBID: tmdbID}, candidates)
				if err != nil {
					return err
				}
				if ok {
					matchID = match.ID
				}
			}

			rows := make([][]string, 0, len(candidates))
			for _, candidate := range candidates {
				ids := make([]string, 0, 1)
				for _, value := range candidate.TMDBIDs() {
					ids = append(ids, strconv.FormatFloat(value, 'f', -1, 64))
				}
				year := ""
				if candidate.Year > 0 {
					year = strconv.Itoa(candidate.Year)
				}
				marker := ""
				if matchID != 0 && candidate.ID == matchID {
					marker = "✓"
				}
				rows = append(rows, []string{
					marker,
					strconv.FormatInt(candidate.ID, 10),
					candidate.Title,
					year,
					strings.Join(ids, ", "),
					candidate.FullPath,
				})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"", "JW ID", "Title", "Year", "TMDB", "Path"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft, alignRight, alignRight, alignLeft},
			))
			if tmdbID > 0 {
				if matchID != 0 {
					fmt.Fprintf(out, "TMDB %d matches JustWatch id %d\n", tmdbID, matchID)
				} else {
					fmt.Fprintf(out, "TMDB %d matches none of these results; enrich would report it as not found\n", tmdbID)
				}
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&tmdbID, "tmdb-id", 0, "Mark the candidate whose TMDB cross-reference equals this id")
	return cmd
}
