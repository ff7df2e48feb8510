package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeJustWatch()
	c.normalizeEnrichment()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("MOVIESYNC_CATALOG_FILE"); ok && strings.TrimSpace(value) != "" {
		c.Paths.CatalogFile = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Paths.CatalogFile) == "" {
		c.Paths.CatalogFile = defaultCatalogFile
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}

	var err error
	if c.Paths.CatalogFile, err = expandPath(strings.TrimSpace(c.Paths.CatalogFile)); err != nil {
		return fmt.Errorf("paths.catalog_file: %w", err)
	}
	// An empty overrides_file disables the patch overlay.
	if c.Paths.OverridesFile, err = expandPath(strings.TrimSpace(c.Paths.OverridesFile)); err != nil {
		return fmt.Errorf("paths.overrides_file: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeJustWatch() {
	c.JustWatch.BaseURL = strings.TrimRight(strings.TrimSpace(c.JustWatch.BaseURL), "/")
	if c.JustWatch.BaseURL == "" {
		c.JustWatch.BaseURL = defaultJustWatchBaseURL
	}
	c.JustWatch.Locale = strings.TrimSpace(c.JustWatch.Locale)
	if c.JustWatch.Locale == "" {
		c.JustWatch.Locale = defaultJustWatchLocale
	}
	c.JustWatch.Language = strings.ToLower(strings.TrimSpace(c.JustWatch.Language))
	if c.JustWatch.Language == "" {
		c.JustWatch.Language = defaultJustWatchLanguage
	}
	if c.JustWatch.RequestTimeout == 0 {
		c.JustWatch.RequestTimeout = defaultRequestTimeout
	}
	c.JustWatch.UserAgent = strings.TrimSpace(c.JustWatch.UserAgent)
	if c.JustWatch.UserAgent == "" {
		c.JustWatch.UserAgent = defaultUserAgent
	}
}

func (c *Config) normalizeEnrichment() {
	if c.Enrichment.CheckpointInterval == 0 {
		c.Enrichment.CheckpointInterval = defaultCheckpointInterval
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "console", "json":
	default:
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
