// Package overrides applies operator-authored patches on top of the catalog.
//
// A patch targets one record by either its catalog id or its legacy "scbKey"
// and can pin a JustWatch id or mark the title as absent from JustWatch. The
// first matching patch wins. NeedsEnrichment is the single decision point the
// enrichment run uses to skip records that are already settled.
package overrides
