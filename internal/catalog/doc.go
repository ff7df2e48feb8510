// Package catalog models the local movie catalog and its persistence.
//
// A catalog is a JSON array of movie objects shared with other tools. Record
// decodes the handful of members the enrichment pipeline cares about (id,
// tconst, title, tmdbId and the JustWatch fields) and keeps every other member
// verbatim so a read/write cycle never drops data it does not understand.
//
// Identifiers are opaque: Key compares decoded JSON values structurally, so a
// composite id such as ["Alien", 1979] matches regardless of whitespace.
//
// FileStore is the default Store. Writes go through a temp file and rename, and
// Lock guards a run against a concurrent invocation. Session holds the working
// copy for one run and makes each checkpoint an explicit Flush call.
package catalog
