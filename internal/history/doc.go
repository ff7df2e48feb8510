// Package history keeps a SQLite ledger of enrichment runs.
//
// Each run is appended once it ends, whatever its final state, so operators can
// see when the last pass happened, whether JustWatch cut it short, and how many
// records are still waiting. The ledger is advisory: the catalog file remains
// the only source of truth for enrichment data.
package history
