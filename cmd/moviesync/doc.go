// Command moviesync fills in JustWatch identifiers for a local movie catalog.
//
// Typical use:
//
//	moviesync config init
//	moviesync enrich
//	moviesync status
//
// enrich walks the catalog once, searching JustWatch for every record that has
// a TMDB id but no JustWatch data, and accepts a result only when its TMDB
// cross-reference matches exactly. search previews what a single title
// returns, and invalidate clears stored JustWatch data so the next enrich
// re-evaluates a record.
package main
