package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"moviesync/internal/catalog"
	"moviesync/internal/config"
	"moviesync/internal/justwatch"
	"moviesync/internal/logging"
	"moviesync/internal/overrides"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger(cfg *config.Config) (*slog.Logger, error) {
	var override string
	if c.logLevelFlag != nil {
		override = *c.logLevelFlag
	}
	logger, err := logging.NewFromConfig(cfg, override)
	if err != nil {
		return nil, fmt.Errorf("setup logging: %w", err)
	}
	return logger, nil
}

// openCatalog returns the file store and, when lock is true, holds its lock
// until the returned release function runs.
func openCatalog(cfg *config.Config, logger *slog.Logger, lock bool) (*catalog.FileStore, func(), error) {
	store, err := catalog.NewFileStore(cfg.Paths.CatalogFile, logger)
	if err != nil {
		return nil, nil, err
	}
	if !lock {
		return store, func() {}, nil
	}
	unlock, err := store.Lock()
	if err != nil {
		return nil, nil, err
	}
	release := func() {
		if err := unlock(); err != nil {
			logger.Warn("release catalog lock failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "catalog_unlock_failed"),
				logging.String(logging.FieldErrorHint, "remove "+store.Path()+".lock if no moviesync process is running"),
				logging.String(logging.FieldImpact, "next run may report the catalog as locked"))
		}
	}
	return store, release, nil
}

func newOverrides(cfg *config.Config, logger *slog.Logger) *overrides.Catalog {
	return overrides.NewCatalog(cfg.Paths.OverridesFile, logger)
}

func newSearchClient(cfg *config.Config) (*justwatch.Client, error) {
	fetcher := justwatch.NewHTTPFetcher(
		justwatch.WithTimeout(time.Duration(cfg.JustWatch.RequestTimeout)*time.Second),
		justwatch.WithUserAgent(cfg.JustWatch.UserAgent),
		justwatch.WithRequestsPerSecond(cfg.JustWatch.RequestsPerSecond),
	)
	client, err := justwatch.New(cfg.JustWatch.BaseURL, cfg.JustWatch.Locale, cfg.JustWatch.Language, fetcher)
	if err != nil {
		return nil, fmt.Errorf("create JustWatch client: %w", err)
	}
	return client, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
