package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateJustWatch(); err != nil {
		return err
	}
	if c.Enrichment.CheckpointInterval <= 0 {
		return errors.New("enrichment.checkpoint_interval must be positive")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q (use debug, info, warn, or error)", c.Logging.Level)
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.CatalogFile) == "" {
		return errors.New("paths.catalog_file must be set (or export MOVIESYNC_CATALOG_FILE)")
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir must be set")
	}
	if c.Paths.OverridesFile != "" && c.Paths.OverridesFile == c.Paths.CatalogFile {
		return errors.New("paths.overrides_file must differ from paths.catalog_file")
	}
	return nil
}

func (c *Config) validateJustWatch() error {
	parsed, err := url.Parse(c.JustWatch.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("justwatch.base_url must be an absolute URL, got %q", c.JustWatch.BaseURL)
	}
	if c.JustWatch.RequestTimeout <= 0 {
		return errors.New("justwatch.request_timeout must be positive (seconds)")
	}
	if c.JustWatch.RequestsPerSecond < 0 {
		return errors.New("justwatch.requests_per_second must be >= 0")
	}
	return nil
}
