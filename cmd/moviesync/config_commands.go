package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"moviesync/internal/catalog"
	"moviesync/internal/config"
	"moviesync/internal/overrides"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var (
		targetPath  string
		catalogFile string
		overwrite   bool
	)

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a starter configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := initTarget(targetPath)
			if err != nil {
				return err
			}
			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("check config path: %w", err)
				}
			}
			if catalogFile != "" {
				if catalogFile, err = config.ExpandPath(catalogFile); err != nil {
					return fmt.Errorf("resolve catalog path: %w", err)
				}
			}
			if err := config.CreateSample(target, catalogFile); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			// Read the file back so the operator sees paths as enrich will.
			cfg, _, _, err := config.Load(target)
			if err != nil {
				return fmt.Errorf("written config does not load: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, renderTable(out,
				[]string{"Setting", "Value"},
				[][]string{
					{"Catalog", cfg.Paths.CatalogFile},
					{"Overrides", valueOr(cfg.Paths.OverridesFile, "disabled")},
					{"State", cfg.Paths.StateDir},
					{"JustWatch", cfg.JustWatch.BaseURL + " (" + cfg.JustWatch.Locale + ")"},
				},
				[]columnAlignment{alignLeft, alignLeft},
			))
			if catalogFile == "" {
				fmt.Fprintln(out, "Set paths.catalog_file (or export MOVIESYNC_CATALOG_FILE) before running moviesync enrich.")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().StringVar(&catalogFile, "catalog", "", "Catalog file to write into the configuration")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func initTarget(flagValue string) (string, error) {
	target := strings.TrimSpace(flagValue)
	if target == "" {
		path, err := config.DefaultConfigPath()
		if err != nil {
			return "", fmt.Errorf("determine default config path: %w", err)
		}
		return path, nil
	}
	expanded, err := config.ExpandPath(target)
	if err != nil {
		return "", fmt.Errorf("resolve config path: %w", err)
	}
	return expanded, nil
}

// configCheck is one row of the validate report. A non-nil err fails validation.
type configCheck struct {
	name   string
	detail string
	err    error
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Check the configuration, catalog, and override file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(ctx.configPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}

			configDetail := path
			if !exists {
				configDetail = path + " (not found, defaults used)"
			}
			patches, patchCheck := checkOverrides(cmd, cfg)
			checks := []configCheck{
				{name: "Config", detail: configDetail},
				checkCatalog(cmd, cfg, patches),
				patchCheck,
				{name: "JustWatch", detail: fmt.Sprintf("%s locale=%s language=%s", cfg.JustWatch.BaseURL, cfg.JustWatch.Locale, cfg.JustWatch.Language)},
			}

			out := cmd.OutOrStdout()
			failed := printChecks(out, checks)
			if failed > 0 {
				return fmt.Errorf("configuration has %d problem(s)", failed)
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

// checkOverrides parses the patch file. It returns nil patches when the file
// cannot be used.
func checkOverrides(cmd *cobra.Command, cfg *config.Config) (*overrides.Set, configCheck) {
	check := configCheck{name: "Overrides"}
	if cfg.Paths.OverridesFile == "" {
		check.detail = "disabled"
		return overrides.NewSet(nil), check
	}
	if _, err := os.Stat(cfg.Paths.OverridesFile); errors.Is(err, os.ErrNotExist) {
		check.detail = cfg.Paths.OverridesFile + " (not found, no patches)"
		return overrides.NewSet(nil), check
	}
	set, err := overrides.NewCatalog(cfg.Paths.OverridesFile, nil).ReadOverrides(cmd.Context())
	if err != nil {
		check.detail = cfg.Paths.OverridesFile
		check.err = err
		return nil, check
	}
	check.detail = fmt.Sprintf("%s (%d patches)", cfg.Paths.OverridesFile, set.Len())
	return set, check
}

// checkCatalog parses the catalog without locking it. A missing catalog is
// reported but not an error, since it may be created after the config.
func checkCatalog(cmd *cobra.Command, cfg *config.Config, patches *overrides.Set) configCheck {
	check := configCheck{name: "Catalog", detail: cfg.Paths.CatalogFile}
	if _, err := os.Stat(cfg.Paths.CatalogFile); errors.Is(err, os.ErrNotExist) {
		check.detail += " (not found)"
		return check
	}
	store, err := catalog.NewFileStore(cfg.Paths.CatalogFile, nil)
	if err != nil {
		check.err = err
		return check
	}
	records, err := store.ReadCatalog(cmd.Context())
	if err != nil {
		check.err = err
		return check
	}
	var needs func(*catalog.Record) bool
	if patches != nil {
		needs = patches.NeedsEnrichment
	}
	stats := catalog.Summarize(records, needs)
	check.detail += fmt.Sprintf(" (%d records, %d pending)", stats.Total, stats.Pending)
	return check
}

func printChecks(out io.Writer, checks []configCheck) int {
	failed := 0
	rows := make([][]string, 0, len(checks))
	for _, check := range checks {
		status := "ok"
		detail := check.detail
		if check.err != nil {
			failed++
			status = "error"
			detail = fmt.Sprintf("%s: %v", detail, check.err)
		}
		rows = append(rows, []string{check.name, status, detail})
	}
	fmt.Fprintln(out, renderTable(out,
		[]string{"Check", "Status", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft},
	))
	return failed
}

func valueOr(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
