package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"moviesync/internal/catalog"
	"moviesync/internal/logging"
)

func newInvalidateCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invalidate <id>...",
		Short: "Clear stored JustWatch data for catalog records",
		Long: `Clear jwId, jwFullPath, and jwMissing on the given records so the next enrich
searches for them again. Ids are JSON values; bare words are read as strings.

Examples:
  moviesync invalidate tt0078748
  moviesync invalidate 42 '["Alien",1979]'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			logger, err := ctx.logger(cfg)
			if err != nil {
				return err
			}

			keys := make([]catalog.Key, 0, len(args))
			for _, arg := range args {
				key, err := catalog.ParseKey(strings.TrimSpace(arg))
				if err != nil {
					return fmt.Errorf("parse id %q: %w", arg, err)
				}
				if key.IsZero() {
					return fmt.Errorf("id %q is null", arg)
				}
				keys = append(keys, key)
			}

			store, release, err := openCatalog(cfg, logger, true)
			if err != nil {
				return err
			}
			defer release()

			session, err := catalog.Open(cmd.Context(), store)
			if err != nil {
				return fmt.Errorf("load catalog: %w", err)
			}

			records := make([]*catalog.Record, 0, len(keys))
			var missing []string
			for _, key := range keys {
				rec, ok := session.Find(key)
				if !ok {
					missing = append(missing, key.String())
					continue
				}
				records = append(records, rec)
			}
			if len(missing) > 0 {
				return fmt.Errorf("no catalog record with id %s; nothing was changed", strings.Join(missing, ", "))
			}

			for _, rec := range records {
				catalog.InvalidateEnrichment(rec)
				logger.Info("invalidated JustWatch data",
					logging.String(logging.FieldRecordID, rec.ID.String()),
					logging.String("title", rec.Title))
			}
			if err := session.Flush(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Invalidated %d record(s); run enrich to search for them again\n", len(records))
			return nil
		},
	}
	return cmd
}
