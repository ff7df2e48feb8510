package config

const (
	defaultConfigPath         = "~/.config/moviesync/config.toml"
	defaultCatalogFile        = "~/.local/share/moviesync/movies.json"
	defaultOverridesFile      = "~/.local/share/moviesync/patches.json"
	defaultStateDir           = "~/.local/state/moviesync"
	defaultJustWatchBaseURL   = "https://apis.justwatch.com"
	defaultJustWatchLocale    = "fr_FR"
	defaultJustWatchLanguage  = "fr"
	defaultRequestTimeout     = 30
	defaultUserAgent          = "moviesync/dev"
	defaultCheckpointInterval = 50
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			CatalogFile:   defaultCatalogFile,
			OverridesFile: defaultOverridesFile,
			StateDir:      defaultStateDir,
		},
		JustWatch: JustWatch{
			BaseURL:        defaultJustWatchBaseURL,
			Locale:         defaultJustWatchLocale,
			Language:       defaultJustWatchLanguage,
			RequestTimeout: defaultRequestTimeout,
			UserAgent:      defaultUserAgent,
		},
		Enrichment: Enrichment{
			CheckpointInterval: defaultCheckpointInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
