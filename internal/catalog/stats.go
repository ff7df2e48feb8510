package catalog

// Stats summarizes catalog enrichment coverage.
type Stats struct {
	Total      int
	WithTMDBID int
	Enriched   int
	Missing    int
	Pending    int
}

// Summarize counts records by enrichment state. needs decides whether a record
// still requires enrichment (typically the override-aware check); a nil needs
// falls back to "has a TMDB id but is not enriched".
func Summarize(records []Record, needs func(*Record) bool) Stats {
	if needs == nil {
		needs = func(r *Record) bool { return r.HasTMDBID() && !r.Enriched() }
	}
	var stats Stats
	for i := range records {
		rec := &records[i]
		stats.Total++
		if rec.HasTMDBID() {
			stats.WithTMDBID++
		}
		if rec.Enriched() {
			stats.Enriched++
		}
		if rec.JWMissing {
			stats.Missing++
		}
		if needs(rec) {
			stats.Pending++
		}
	}
	return stats
}
