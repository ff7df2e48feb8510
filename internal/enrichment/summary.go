package enrichment

import "time"

// State is the phase an enrichment run is in, or ended in.
type State string

const (
	StateLoading     State = "loading"
	StateIterating   State = "iterating"
	StateFinalizing  State = "finalizing"
	StateDone        State = "done"
	StateRateLimited State = "rate_limited"
	StateFailed      State = "failed"
)

// Succeeded reports whether the run ended in a state that exits zero.
func (s State) Succeeded() bool {
	return s == StateDone || s == StateRateLimited
}

// Outcome is the per-record result of an enrichment attempt.
type Outcome string

const (
	OutcomeMatched  Outcome = "matched"
	OutcomeNotFound Outcome = "not_found"
	OutcomeFailed   Outcome = "failed"
)

// Summary describes one run.
type Summary struct {
	RunID      string
	State      State
	StartedAt  time.Time
	FinishedAt time.Time

	Total    int
	Patches  int
	Skipped  int
	Enriched int
	NotFound int
	Failed   int
	// Unresolved counts records still needing enrichment when the run ended.
	Unresolved int

	// Checkpoints counts periodic writes; Writes counts every catalog write,
	// including the final one.
	Checkpoints int
	Writes      int
}

// Duration returns the wall time of the run.
func (s Summary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
