package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"moviesync/internal/catalog"
	"moviesync/internal/justwatch"
	"moviesync/internal/matching"
	"moviesync/internal/overrides"
)

// memoryStore keeps the catalog as encoded JSON so tests observe exactly what
// a file store would have written.
type memoryStore struct {
	data     []byte
	writes   int
	readErr  error
	writeErr error
	snapshot [][]catalog.Record
}

func newMemoryStore(t *testing.T, records []catalog.Record) *memoryStore {
	t.Helper()
	data, err := json.Marshal(records)
	if err != nil {
		t.Fatalf("marshal records: %v", err)
	}
	return &memoryStore{data: data}
}

func (m *memoryStore) ReadCatalog(context.Context) ([]catalog.Record, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	var records []catalog.Record
	if err := json.Unmarshal(m.data, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (m *memoryStore) WriteCatalog(_ context.Context, records []catalog.Record) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	data, err := json.Marshal(records)
	if err != nil {
		return err
	}
	m.data = data
	m.writes++
	copied := make([]catalog.Record, len(records))
	copy(copied, records)
	m.snapshot = append(m.snapshot, copied)
	return nil
}

func (m *memoryStore) records(t *testing.T) []catalog.Record {
	t.Helper()
	records, err := m.ReadCatalog(context.Background())
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	return records
}

type staticPatches struct {
	set *overrides.Set
	err error
}

func (s staticPatches) ReadOverrides(context.Context) (*overrides.Set, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.set == nil {
		return overrides.NewSet(nil), nil
	}
	return s.set, nil
}

// fakeSearcher answers by title. Titles listed in tmdb return one candidate
// whose tmdb:id scoring equals the mapped value; failAt injects an error on
// the n-th call (1-based).
type fakeSearcher struct {
	tmdb   map[string]int64
	calls  []string
	failAt map[int]error
}

func (f *fakeSearcher) SearchTitles(_ context.Context, title string) ([]justwatch.Candidate, error) {
	f.calls = append(f.calls, title)
	if err, ok := f.failAt[len(f.calls)]; ok {
		return nil, err
	}
	id, ok := f.tmdb[title]
	if !ok {
		return []justwatch.Candidate{}, nil
	}
	return []justwatch.Candidate{
		{
			ID:       id + 1000,
			FullPath: fmt.Sprintf("/fr/film/%d", id),
			Scoring:  []justwatch.Scoring{{ProviderType: justwatch.ProviderTMDBID, Value: float64(id)}},
		},
	}, nil
}

func movies(n int) ([]catalog.Record, map[string]int64) {
	records := make([]catalog.Record, n)
	index := make(map[string]int64, n)
	for i := range records {
		title := fmt.Sprintf("Movie %d", i+1)
		tmdbID := int64(i + 1)
		records[i] = catalog.Record{ID: catalog.MustKey(fmt.Sprintf("m%d", i+1)), Title: title, TMDBID: tmdbID}
		index[title] = tmdbID
	}
	return records, index
}

// captureLogs returns a JSON logger option and the buffer it writes to.
func captureLogs() (*bytes.Buffer, Option) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return &buf, WithLogger(logger)
}

// logEntries decodes every captured line whose message is msg.
func logEntries(t *testing.T, buf *bytes.Buffer, msg string) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("decode log line %q: %v", line, err)
		}
		if entry["msg"] == msg {
			entries = append(entries, entry)
		}
	}
	return entries
}

func newTestReconciler(t *testing.T, store catalog.Store, patches PatchSource, searcher justwatch.Searcher, opts ...Option) *Reconciler {
	t.Helper()
	r, err := New(store, patches, searcher, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestRunCheckpointsEveryFiftyMatches(t *testing.T) {
	records, index := movies(120)
	store := newMemoryStore(t, records)
	searcher := &fakeSearcher{tmdb: index}

	summary, err := newTestReconciler(t, store, staticPatches{}, searcher).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.State != StateDone {
		t.Fatalf("expected done, got %s", summary.State)
	}
	// Periodic writes after the 50th and 100th match, then the final write.
	if store.writes != 3 || summary.Writes != 3 || summary.Checkpoints != 2 {
		t.Fatalf("expected 3 writes with 2 checkpoints, got writes=%d summary=%+v", store.writes, summary)
	}
	if summary.Enriched != 120 || summary.Unresolved != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if got := store.snapshot[0][49].JWID; got != 1050 {
		t.Fatalf("first checkpoint should include the 50th match, got jwId %d", got)
	}
	if got := store.snapshot[0][50].JWID; got != 0 {
		t.Fatalf("first checkpoint should not include the 51st match, got jwId %d", got)
	}
	for _, rec := range store.records(t) {
		if !rec.Enriched() {
			t.Fatalf("record %s not enriched", rec.ID)
		}
	}
}

func TestRunCustomCheckpointInterval(t *testing.T) {
	records, index := movies(10)
	store := newMemoryStore(t, records)

	summary, err := newTestReconciler(t, store, staticPatches{}, &fakeSearcher{tmdb: index}, WithCheckpointInterval(3)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Checkpoints != 3 || store.writes != 4 {
		t.Fatalf("expected 3 checkpoints and 4 writes, got %+v writes=%d", summary, store.writes)
	}
}

func TestRunRateLimitStopsAndKeepsProgress(t *testing.T) {
	records, index := movies(20)
	store := newMemoryStore(t, records)
	searcher := &fakeSearcher{
		tmdb:   index,
		failAt: map[int]error{10: &justwatch.RateLimitError{Status: 401}},
	}
	logs, logOpt := captureLogs()

	summary, err := newTestReconciler(t, store, staticPatches{}, searcher, logOpt).Run(context.Background())
	if err != nil {
		t.Fatalf("rate limit must not be an error, got %v", err)
	}
	if summary.State != StateRateLimited || !summary.State.Succeeded() {
		t.Fatalf("expected rate_limited, got %s", summary.State)
	}
	if len(searcher.calls) != 10 {
		t.Fatalf("expected search to stop at the 10th record, got %d calls", len(searcher.calls))
	}
	if store.writes != 1 {
		t.Fatalf("expected exactly one write, got %d", store.writes)
	}
	if summary.Enriched != 9 || summary.Unresolved != 11 {
		t.Fatalf("expected 9 enriched and 11 unresolved, got %+v", summary)
	}
	written := store.records(t)
	for i, rec := range written {
		if want := i < 9; rec.Enriched() != want {
			t.Fatalf("record %d enriched=%v, want %v", i+1, rec.Enriched(), want)
		}
	}

	limited := logEntries(t, logs, "JustWatch request limit reached; stopping early")
	if len(limited) != 1 {
		t.Fatalf("expected one rate-limit warning, got %d", len(limited))
	}
	warn := limited[0]
	if warn["level"] != "WARN" || warn["event_type"] != "justwatch_rate_limited" || warn["unresolved"] != float64(11) {
		t.Fatalf("unexpected rate-limit warning %v", warn)
	}
	if warn["component"] != "enrichment" || warn["run_id"] != summary.RunID {
		t.Fatalf("rate-limit warning missing run context: %v", warn)
	}

	labels := make([]string, 0, 11)
	for i := 10; i <= 20; i++ {
		labels = append(labels, fmt.Sprintf(`"m%d"`, i))
	}
	listed := logEntries(t, logs, "unresolved records")
	if len(listed) != 1 || listed[0]["records"] != strings.Join(labels, " ") {
		t.Fatalf("expected unresolved list %q, got %v", strings.Join(labels, " "), listed)
	}
}

func TestRunRateLimitListsUnresolvedOnlyBelowLimit(t *testing.T) {
	cases := []struct {
		records int
		listed  bool
	}{
		{records: 99, listed: true},
		{records: 100, listed: false},
		{records: 150, listed: false},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprint(tc.records), func(t *testing.T) {
			records, index := movies(tc.records)
			store := newMemoryStore(t, records)
			searcher := &fakeSearcher{
				tmdb:   index,
				failAt: map[int]error{1: &justwatch.RateLimitError{Status: 401}},
			}
			logs, logOpt := captureLogs()

			summary, err := newTestReconciler(t, store, staticPatches{}, searcher, logOpt).Run(context.Background())
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if summary.Unresolved != tc.records {
				t.Fatalf("expected %d unresolved, got %d", tc.records, summary.Unresolved)
			}
			limited := logEntries(t, logs, "JustWatch request limit reached; stopping early")
			if len(limited) != 1 || limited[0]["unresolved"] != float64(tc.records) {
				t.Fatalf("expected rate-limit warning with the unresolved count, got %v", limited)
			}
			listed := logEntries(t, logs, "unresolved records")
			if got := len(listed) == 1; got != tc.listed {
				t.Fatalf("unresolved list logged=%v, want %v", got, tc.listed)
			}
			if tc.listed && strings.Count(listed[0]["records"].(string), `"m`) != tc.records {
				t.Fatalf("expected %d labels, got %v", tc.records, listed[0]["records"])
			}
		})
	}
}

func TestRunIsIdempotent(t *testing.T) {
	records, index := movies(5)
	records = append(records, catalog.Record{ID: catalog.MustKey("no-tmdb"), Title: "Unknown"})
	store := newMemoryStore(t, records)

	if _, err := newTestReconciler(t, store, staticPatches{}, &fakeSearcher{tmdb: index}).Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first := string(store.data)

	searcher := &fakeSearcher{tmdb: index}
	summary, err := newTestReconciler(t, store, staticPatches{}, searcher).Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(searcher.calls) != 0 {
		t.Fatalf("second run should not search, got %v", searcher.calls)
	}
	if summary.Skipped != 6 {
		t.Fatalf("expected all records skipped, got %+v", summary)
	}
	if string(store.data) != first {
		t.Fatalf("catalog changed on re-run:\n%s\n%s", first, store.data)
	}
}

func TestRunAfterInvalidateRestoresRecord(t *testing.T) {
	records, index := movies(3)
	store := newMemoryStore(t, records)
	if _, err := newTestReconciler(t, store, staticPatches{}, &fakeSearcher{tmdb: index}).Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	enriched := store.records(t)

	session, err := catalog.Open(context.Background(), store)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	rec, ok := session.Find(catalog.MustKey("m2"))
	if !ok {
		t.Fatal("record m2 not found")
	}
	catalog.InvalidateEnrichment(rec)
	if err := session.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}

	searcher := &fakeSearcher{tmdb: index}
	if _, err := newTestReconciler(t, store, staticPatches{}, searcher).Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(searcher.calls) != 1 || searcher.calls[0] != "Movie 2" {
		t.Fatalf("expected only Movie 2 searched, got %v", searcher.calls)
	}
	restored := store.records(t)
	if restored[1].JWID != enriched[1].JWID || restored[1].JWFullPath != enriched[1].JWFullPath {
		t.Fatalf("expected restored %+v, got %+v", enriched[1], restored[1])
	}
}

func TestRunContinuesAfterItemFailure(t *testing.T) {
	records, index := movies(4)
	store := newMemoryStore(t, records)
	searcher := &fakeSearcher{
		tmdb: index,
		failAt: map[int]error{
			2: &justwatch.TransportError{Status: 502, Err: errors.New("bad gateway")},
			3: &justwatch.ParseError{Err: errors.New("unexpected EOF")},
		},
	}
	logs, logOpt := captureLogs()

	summary, err := newTestReconciler(t, store, staticPatches{}, searcher, logOpt).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.State != StateDone || summary.Failed != 2 || summary.Enriched != 2 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if len(searcher.calls) != 4 {
		t.Fatalf("expected every record searched, got %d", len(searcher.calls))
	}
	written := store.records(t)
	if written[1].JWID != 0 || written[2].JWID != 0 {
		t.Fatal("failed records must stay unresolved")
	}
	if !written[3].Enriched() {
		t.Fatal("record after failures must still be enriched")
	}

	failures := logEntries(t, logs, "search failed")
	if len(failures) != 2 {
		t.Fatalf("expected two search failure warnings, got %d", len(failures))
	}
	for i, entry := range failures {
		if entry["level"] != "WARN" || entry["event_type"] != "justwatch_search_failed" {
			t.Fatalf("unexpected failure warning %v", entry)
		}
		if want := fmt.Sprintf("%d/4", i+2); entry["progress"] != want {
			t.Fatalf("expected progress %s, got %v", want, entry["progress"])
		}
		if entry["error_hint"] == nil || entry["impact"] == nil || entry["error"] == nil {
			t.Fatalf("failure warning missing context: %v", entry)
		}
	}
}

func TestRunNotFoundLeavesRecordUntouched(t *testing.T) {
	records := []catalog.Record{{ID: catalog.MustKey(1), Title: "Obscure", TMDBID: 77}}
	store := newMemoryStore(t, records)
	logs, logOpt := captureLogs()

	summary, err := newTestReconciler(t, store, staticPatches{}, &fakeSearcher{tmdb: map[string]int64{"Obscure": 78}}, logOpt).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.NotFound != 1 || summary.Unresolved != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if rec := store.records(t)[0]; rec.JWID != 0 || rec.JWFullPath != "" || rec.JWMissing {
		t.Fatalf("record must be untouched, got %+v", rec)
	}

	notFound := logEntries(t, logs, "not found in JustWatch")
	if len(notFound) != 1 {
		t.Fatalf("expected one not-found line, got %d", len(notFound))
	}
	entry := notFound[0]
	if entry["level"] != "INFO" || entry["progress"] != "1/1" || entry["record_id"] != "1" || entry["tmdb_id"] != float64(77) {
		t.Fatalf("unexpected not-found line %v", entry)
	}
	if hint, _ := entry["error_hint"].(string); !strings.Contains(hint, `"jwMissing": true`) {
		t.Fatalf("expected jwMissing hint, got %q", hint)
	}
}

func TestRunOverlaySkipsSettledRecords(t *testing.T) {
	records := []catalog.Record{
		{ID: catalog.MustKey("a"), Title: "A", TMDBID: 1},
		{ID: catalog.MustKey("b"), Title: "B", TMDBID: 2},
		{ID: catalog.MustKey("c"), Title: "C", TMDBID: 3},
		{ID: catalog.MustKey("d"), Title: "D"},
	}
	store := newMemoryStore(t, records)
	patches := overrides.NewSet([]overrides.Patch{
		{ID: catalog.MustKey("a"), JWID: 500},
		{SCBKey: catalog.MustKey("b"), JWMissing: true},
	})
	searcher := &fakeSearcher{tmdb: map[string]int64{"A": 1, "B": 2, "C": 3}}

	summary, err := newTestReconciler(t, store, staticPatches{set: patches}, searcher).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(searcher.calls) != 1 || searcher.calls[0] != "C" {
		t.Fatalf("expected only C searched, got %v", searcher.calls)
	}
	if summary.Skipped != 3 || summary.Patches != 2 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	// Patches steer the search; they are not copied into the catalog.
	if rec := store.records(t)[0]; rec.JWID != 0 {
		t.Fatalf("patch must not be written into the record, got %+v", rec)
	}
}

func TestRunLoadFailureIsFatalWithoutWrite(t *testing.T) {
	store := newMemoryStore(t, nil)
	store.readErr = errors.New("disk gone")

	summary, err := newTestReconciler(t, store, staticPatches{}, &fakeSearcher{}).Run(context.Background())
	if err == nil || summary.State != StateFailed {
		t.Fatalf("expected failure, got state=%s err=%v", summary.State, err)
	}
	if store.writes != 0 {
		t.Fatalf("expected no writes, got %d", store.writes)
	}

	records, _ := movies(2)
	store = newMemoryStore(t, records)
	_, err = newTestReconciler(t, store, staticPatches{err: errors.New("bad json")}, &fakeSearcher{}).Run(context.Background())
	if err == nil || store.writes != 0 {
		t.Fatalf("expected overrides failure without writes, got err=%v writes=%d", err, store.writes)
	}
}

func TestRunCancellationIsFatalWithoutWrite(t *testing.T) {
	records, index := movies(3)
	store := newMemoryStore(t, records)
	ctx, cancel := context.WithCancel(context.Background())
	searcher := &cancellingSearcher{fakeSearcher: fakeSearcher{tmdb: index}, cancel: cancel, at: 2}

	summary, err := newTestReconciler(t, store, staticPatches{}, searcher).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if summary.State != StateFailed || store.writes != 0 {
		t.Fatalf("expected failed run without writes, got %+v writes=%d", summary, store.writes)
	}
}

type cancellingSearcher struct {
	fakeSearcher
	cancel context.CancelFunc
	at     int
}

func (c *cancellingSearcher) SearchTitles(ctx context.Context, title string) ([]justwatch.Candidate, error) {
	if len(c.calls)+1 == c.at {
		c.calls = append(c.calls, title)
		c.cancel()
		return nil, &justwatch.TransportError{Err: ctx.Err()}
	}
	return c.fakeSearcher.SearchTitles(ctx, title)
}

func TestRunCheckpointFailureIsFatal(t *testing.T) {
	records, index := movies(2)
	store := newMemoryStore(t, records)
	store.writeErr = errors.New("read-only filesystem")

	summary, err := newTestReconciler(t, store, staticPatches{}, &fakeSearcher{tmdb: index}, WithCheckpointInterval(1)).Run(context.Background())
	if err == nil || summary.State != StateFailed {
		t.Fatalf("expected failure, got state=%s err=%v", summary.State, err)
	}
}

type emptySearcher struct{}

func (emptySearcher) SearchTitles(context.Context, string) ([]justwatch.Candidate, error) {
	return nil, nil
}

func TestEnrichRejectsRecordWithoutTMDBID(t *testing.T) {
	r := newTestReconciler(t, newMemoryStore(t, nil), staticPatches{}, emptySearcher{})
	_, err := r.enrich(context.Background(), &catalog.Record{ID: catalog.MustKey("x"), Title: "X"})
	if !errors.Is(err, matching.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(nil, staticPatches{}, &fakeSearcher{}); err == nil {
		t.Fatal("expected error for nil store")
	}
}

func TestCheckpointerCountsSuccesses(t *testing.T) {
	c := newCheckpointer(2)
	got := []bool{c.success(), c.success(), c.success(), c.success()}
	want := []bool{false, true, false, true}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("success %d: got %v want %v", i+1, got[i], want[i])
		}
	}
	if newCheckpointer(0).every != DefaultCheckpointInterval {
		t.Fatal("expected default interval for non-positive input")
	}
}
