package enrichment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"moviesync/internal/catalog"
	"moviesync/internal/justwatch"
	"moviesync/internal/logging"
	"moviesync/internal/matching"
	"moviesync/internal/overrides"
)

// unresolvedListLimit caps how many record labels the rate-limit summary prints.
const unresolvedListLimit = 100

// PatchSource loads the operator patch list.
type PatchSource interface {
	ReadOverrides(ctx context.Context) (*overrides.Set, error)
}

// Reconciler fills missing JustWatch data in the catalog, one record at a time.
type Reconciler struct {
	store    catalog.Store
	patches  PatchSource
	searcher justwatch.Searcher
	logger   *slog.Logger
	interval int
	now      func() time.Time
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithCheckpointInterval sets how many matches trigger a periodic write.
func WithCheckpointInterval(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.interval = n
		}
	}
}

// WithClock overrides time.Now for run timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// New wires a reconciler. All three collaborators are required.
func New(store catalog.Store, patches PatchSource, searcher justwatch.Searcher, opts ...Option) (*Reconciler, error) {
	if store == nil || patches == nil || searcher == nil {
		return nil, errors.New("enrichment requires catalog store, patch source, and searcher")
	}
	r := &Reconciler{
		store:    store,
		patches:  patches,
		searcher: searcher,
		logger:   logging.NewNop(),
		interval: DefaultCheckpointInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.NewComponentLogger(r.logger, "enrichment")
	return r, nil
}

// Run performs one enrichment pass over the whole catalog.
//
// A nil error means the run ended in StateDone or StateRateLimited, and in both
// cases every match made so far has been written. Any returned error is fatal:
// nothing is written for it, so matches made since the last periodic
// checkpoint are lost. The Summary is meaningful in every case.
func (r *Reconciler) Run(ctx context.Context) (Summary, error) {
	summary := Summary{
		RunID:     uuid.NewString(),
		State:     StateLoading,
		StartedAt: r.now(),
	}
	ctx = logging.WithRunID(ctx, summary.RunID)
	logger := logging.WithContext(ctx, r.logger)

	fail := func(err error) (Summary, error) {
		summary.State = StateFailed
		summary.FinishedAt = r.now()
		return summary, err
	}

	session, err := catalog.Open(ctx, r.store)
	if err != nil {
		return fail(fmt.Errorf("load catalog: %w", err))
	}
	patches, err := r.patches.ReadOverrides(ctx)
	if err != nil {
		return fail(fmt.Errorf("load overrides: %w", err))
	}
	summary.Total = session.Len()
	summary.Patches = patches.Len()
	logger.Info("filling missing JustWatch data",
		logging.Int("records", summary.Total),
		logging.Int("patches", summary.Patches),
		logging.Int("checkpoint_interval", r.interval))

	summary.State = StateIterating
	iterErr := r.iterate(ctx, logger, session, patches, &summary)
	summary.Unresolved = countUnresolved(session, patches)

	switch {
	case iterErr == nil:
		summary.State = StateFinalizing
		if err := session.Flush(ctx); err != nil {
			summary.Writes = session.Flushes()
			return fail(fmt.Errorf("final checkpoint: %w", err))
		}
		summary.Writes = session.Flushes()
		summary.State = StateDone
	case errors.Is(iterErr, justwatch.ErrRateLimited):
		r.reportRateLimit(logger, session, patches, summary.Unresolved)
		if err := session.Flush(ctx); err != nil {
			summary.Writes = session.Flushes()
			return fail(fmt.Errorf("rate-limit checkpoint: %w", err))
		}
		summary.Writes = session.Flushes()
		summary.State = StateRateLimited
	default:
		summary.Writes = session.Flushes()
		return fail(iterErr)
	}

	summary.FinishedAt = r.now()
	logger.Info("enrichment run finished",
		logging.String("state", string(summary.State)),
		logging.Int("enriched", summary.Enriched),
		logging.Int("not_found", summary.NotFound),
		logging.Int("failed", summary.Failed),
		logging.Int("skipped", summary.Skipped),
		logging.Int("unresolved", summary.Unresolved),
		logging.Int("writes", summary.Writes),
		logging.Duration("duration", summary.Duration()))
	return summary, nil
}

func (r *Reconciler) iterate(ctx context.Context, logger *slog.Logger, session *catalog.Session, patches *overrides.Set, summary *Summary) error {
	checkpoints := newCheckpointer(r.interval)
	total := session.Len()

	for i := 0; i < total; i++ {
		rec := session.Record(i)
		if !patches.NeedsEnrichment(rec) {
			summary.Skipped++
			continue
		}

		progress := strconv.Itoa(i+1) + "/" + strconv.Itoa(total)
		recLogger := logger.With(
			logging.String(logging.FieldProgress, progress),
			logging.String(logging.FieldRecordID, rec.ID.String()),
			logging.Int64(logging.FieldTMDBID, rec.TMDBID),
		)

		result, err := r.enrich(ctx, rec)
		if err != nil {
			return err
		}

		switch result.outcome {
		case OutcomeMatched:
			candidate := result.candidate
			rec.JWID = candidate.ID
			rec.JWFullPath = candidate.FullPath
			summary.Enriched++
			if checkpoints.success() {
				if err := session.Flush(ctx); err != nil {
					return fmt.Errorf("periodic checkpoint: %w", err)
				}
				summary.Checkpoints++
				recLogger.Debug("checkpoint written", logging.Int("writes", session.Flushes()))
			}
			recLogger.Info("matched",
				logging.String("title", rec.Title),
				logging.Int64("jw_id", candidate.ID),
				logging.String("jw_full_path", candidate.FullPath))
		case OutcomeNotFound:
			summary.NotFound++
			recLogger.Info("not found in JustWatch",
				logging.String("title", rec.Title),
				logging.String(logging.FieldErrorHint, `add a patch with "jwMissing": true to stop searching for this record`))
		case OutcomeFailed:
			summary.Failed++
			attrs := []logging.Attr{
				logging.String("title", rec.Title),
				logging.Error(result.cause),
				logging.String(logging.FieldErrorHint, "re-run later; check network access to JustWatch"),
				logging.String(logging.FieldImpact, "record stays unresolved for this run"),
			}
			if rec.Tconst != "" {
				attrs = append(attrs, logging.String("tconst", rec.Tconst))
			}
			eventType := "justwatch_search_failed"
			if !justwatch.IsRecoverable(result.cause) {
				eventType = "search_failed_unclassified"
			}
			logging.WarnWithContext(recLogger, "search failed", eventType, attrs...)
		}
	}
	return nil
}

// attempt is the result of one search-and-match step. cause is set only for
// OutcomeFailed.
type attempt struct {
	outcome   Outcome
	candidate justwatch.Candidate
	cause     error
}

// enrich searches and matches one record. Recoverable search failures come back
// as OutcomeFailed; a non-nil error stops the run (rate limiting, cancellation,
// or a caller bug).
func (r *Reconciler) enrich(ctx context.Context, rec *catalog.Record) (attempt, error) {
	candidates, err := r.searcher.SearchTitles(ctx, rec.Title)
	if err != nil {
		if errors.Is(err, justwatch.ErrRateLimited) {
			return attempt{}, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return attempt{}, fmt.Errorf("search %s: %w", rec.ID, ctxErr)
		}
		return attempt{outcome: OutcomeFailed, cause: err}, nil
	}

	candidate, ok, err := matching.Match(rec, candidates)
	if err != nil {
		return attempt{}, fmt.Errorf("match %s: %w", rec.ID, err)
	}
	if !ok {
		return attempt{outcome: OutcomeNotFound}, nil
	}
	return attempt{outcome: OutcomeMatched, candidate: candidate}, nil
}

func (r *Reconciler) reportRateLimit(logger *slog.Logger, session *catalog.Session, patches *overrides.Set, unresolved int) {
	logging.WarnWithContext(logger, "JustWatch request limit reached; stopping early", "justwatch_rate_limited",
		logging.Int("unresolved", unresolved),
		logging.String(logging.FieldErrorHint, "re-run later to resume; matched records are kept"),
		logging.String(logging.FieldImpact, "remaining records stay unresolved until the next run"))
	if unresolved == 0 || unresolved >= unresolvedListLimit {
		return
	}
	labels := make([]string, 0, unresolved)
	records := session.Records()
	for i := range records {
		if patches.NeedsEnrichment(&records[i]) {
			labels = append(labels, records[i].Label())
		}
	}
	logger.Warn("unresolved records", logging.String("records", strings.Join(labels, " ")))
}

func countUnresolved(session *catalog.Session, patches *overrides.Set) int {
	count := 0
	records := session.Records()
	for i := range records {
		if patches.NeedsEnrichment(&records[i]) {
			count++
		}
	}
	return count
}
