// Package logging assembles structured slog loggers and formatting helpers used
// across moviesync.
//
// It owns the console and JSON handlers, level parsing, and output fan-out to
// stderr plus an optional log file. Context helpers stamp the enrichment run
// ID onto every line so a run can be grepped out of a shared log. The package
// also provides a no-op logger for tests and wiring code that cannot fail.
package logging
