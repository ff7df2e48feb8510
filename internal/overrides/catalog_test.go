package overrides

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"moviesync/internal/catalog"
)

func TestParsePatchesAcceptsWrapperAndBOM(t *testing.T) {
	data := []byte("\xEF\xBB\xBF{ \"patches\": [{\"id\":[\"Alien\",1979],\"jwId\":42}]}")
	patches, err := parsePatches(data)
	if err != nil {
		t.Fatalf("parsePatches failed: %v", err)
	}
	if len(patches) != 1 {
		t.Fatalf("expected 1 patch, got %d", len(patches))
	}
	if patches[0].JWID != 42 {
		t.Fatalf("expected jwId 42, got %d", patches[0].JWID)
	}
	if !patches[0].Matches(catalog.MustKey([]any{"Alien", 1979})) {
		t.Fatal("expected composite id to match structurally")
	}
}

func TestParsePatchesEmpty(t *testing.T) {
	patches, err := parsePatches([]byte("  \n"))
	if err != nil || patches != nil {
		t.Fatalf("expected empty result, got %v %v", patches, err)
	}
}

func TestLookupMatchesIDOrSCBKeyFirstWins(t *testing.T) {
	set := NewSet([]Patch{
		{SCBKey: catalog.MustKey("scb-7"), JWMissing: true},
		{ID: catalog.MustKey(7), JWID: 99},
		{ID: catalog.MustKey(7), JWID: 100},
	})

	patch, ok := set.Lookup(catalog.MustKey("scb-7"))
	if !ok || !patch.JWMissing {
		t.Fatalf("expected scbKey match, got %+v", patch)
	}
	patch, ok = set.Lookup(catalog.MustKey(7))
	if !ok || patch.JWID != 99 {
		t.Fatalf("expected first id match, got %+v", patch)
	}
	if _, ok := set.Lookup(catalog.MustKey(8)); ok {
		t.Fatal("expected no match")
	}
}

func TestLookupIgnoresAbsentKeys(t *testing.T) {
	set := NewSet([]Patch{{JWMissing: true}})
	if _, ok := set.Lookup(catalog.Key{}); ok {
		t.Fatal("absent keys must not match each other")
	}
}

func TestNeedsEnrichment(t *testing.T) {
	tests := []struct {
		name   string
		record catalog.Record
		patch  *Patch
		want   bool
	}{
		{"no tmdb id", catalog.Record{Title: "x"}, nil, false},
		{"no tmdb id even when unenriched with patch", catalog.Record{JWID: 0}, &Patch{}, false},
		{"unenriched", catalog.Record{TMDBID: 1}, nil, true},
		{"missing path", catalog.Record{TMDBID: 1, JWID: 5}, nil, true},
		{"missing id", catalog.Record{TMDBID: 1, JWFullPath: "/fr/film/x"}, nil, true},
		{"complete", catalog.Record{TMDBID: 1, JWID: 5, JWFullPath: "/fr/film/x"}, nil, false},
		{"patch jwMissing", catalog.Record{TMDBID: 1}, &Patch{JWMissing: true}, false},
		{"patch jwId", catalog.Record{TMDBID: 1}, &Patch{JWID: 3}, false},
		{"patch without settlement", catalog.Record{TMDBID: 1}, &Patch{}, true},
		{"record jwMissing alone does not settle", catalog.Record{TMDBID: 1, JWMissing: true}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := tt.record
			if got := NeedsEnrichment(&rec, tt.patch); got != tt.want {
				t.Fatalf("NeedsEnrichment = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSettlingPatchWinsRegardlessOfRecordState(t *testing.T) {
	key := catalog.MustKey("m1")
	records := []catalog.Record{
		{ID: key, TMDBID: 10},
		{ID: key, TMDBID: 10, JWID: 1},
		{ID: key, TMDBID: 10, JWFullPath: "/p"},
		{ID: key, TMDBID: 10, JWID: 1, JWFullPath: "/p"},
	}
	for _, patch := range []Patch{{ID: key, JWMissing: true}, {SCBKey: key, JWID: 77}} {
		set := NewSet([]Patch{patch})
		for i := range records {
			if set.NeedsEnrichment(&records[i]) {
				t.Fatalf("patch %+v should suppress record %+v", patch, records[i])
			}
		}
	}
}

func TestCatalogReadOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "patches.json")
	data := []byte(`[{"id":"a","jwMissing":true,"title":"ignored"},{"scbKey":{"n":1},"jwId":12}]`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write patches: %v", err)
	}
	set, err := NewCatalog(path, nil).ReadOverrides(context.Background())
	if err != nil {
		t.Fatalf("ReadOverrides failed: %v", err)
	}
	if set.Len() != 2 {
		t.Fatalf("expected 2 patches, got %d", set.Len())
	}
	patch, ok := set.Lookup(catalog.MustKey(map[string]any{"n": 1}))
	if !ok || patch.JWID != 12 {
		t.Fatalf("expected object key match, got %+v", patch)
	}
}

func TestCatalogMissingFileIsEmpty(t *testing.T) {
	set, err := NewCatalog(filepath.Join(t.TempDir(), "absent.json"), nil).ReadOverrides(context.Background())
	if err != nil {
		t.Fatalf("ReadOverrides failed: %v", err)
	}
	if set.Len() != 0 {
		t.Fatalf("expected empty set, got %d", set.Len())
	}
}

func TestCatalogMalformedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("[{"), 0o644); err != nil {
		t.Fatalf("write patches: %v", err)
	}
	if _, err := NewCatalog(path, nil).ReadOverrides(context.Background()); err == nil {
		t.Fatal("expected parse error")
	}
}
