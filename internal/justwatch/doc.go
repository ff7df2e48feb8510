// Package justwatch provides the minimal JustWatch title-search client used
// during catalog enrichment.
//
// Client builds the popular-titles query (five movie results, one page),
// decodes the response envelope, and classifies failures: a 401 becomes a
// RateLimitError because JustWatch uses it to signal an exhausted quota, other
// HTTP and network failures become TransportError, and undecodable bodies
// become ParseError. The client never retries.
//
// The raw GET is delegated to a Fetcher so tests and embedders can substitute
// the transport. HTTPFetcher is the default and supports a request timeout and
// optional pacing.
package justwatch
