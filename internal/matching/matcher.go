// Package matching decides which JustWatch candidate, if any, is the catalog
// record. The only evidence accepted is an exact TMDB id cross-reference; titles,
// years, and popularity are never compared.
package matching

import (
	"errors"
	"fmt"

	"moviesync/internal/catalog"
	"moviesync/internal/justwatch"
)

// ErrInvalidArgument is returned when a record without a TMDB id reaches the
// matcher. The overlay filters those out, so seeing it means a caller bug.
var ErrInvalidArgument = errors.New("invalid argument")

// Match returns the first candidate, in input order, that carries a tmdb:id
// scoring entry equal to rec.TMDBID. ok is false when none does.
func Match(rec *catalog.Record, candidates []justwatch.Candidate) (match justwatch.Candidate, ok bool, err error) {
	if rec == nil || !rec.HasTMDBID() {
		id := "<nil>"
		if rec != nil {
			id = rec.ID.String()
		}
		return justwatch.Candidate{}, false, fmt.Errorf("%w: record %s has no tmdb id", ErrInvalidArgument, id)
	}
	want := float64(rec.TMDBID)
	for _, candidate := range candidates {
		for _, score := range candidate.Scoring {
			if score.ProviderType == justwatch.ProviderTMDBID && score.Value == want {
				return candidate, true, nil
			}
		}
	}
	return justwatch.Candidate{}, false, nil
}
