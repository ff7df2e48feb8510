// Package enrichment runs the catalog pass that fills in JustWatch identifiers.
//
// A Reconciler loads the catalog and the operator patch list, then walks every
// record in order. Records the patch overlay marks as settled are skipped; the
// rest are searched by title and accepted only on an exact TMDB id match.
// Matches are written back in periodic checkpoints and once more at the end.
//
// Failures fall into three tiers. A failed search for one record is logged and
// the pass continues. A rate limit from JustWatch stops the pass, writes what
// has been matched, and still counts as success. Anything else aborts without
// writing.
package enrichment
