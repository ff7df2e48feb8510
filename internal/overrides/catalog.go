package overrides

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"moviesync/internal/catalog"
	"moviesync/internal/logging"
)

// Patch is an operator-authored correction for one catalog record. It applies
// to the record whose id equals either ID or SCBKey.
type Patch struct {
	ID        catalog.Key `json:"id"`
	SCBKey    catalog.Key `json:"scbKey"`
	JWID      int64       `json:"jwId,omitempty"`
	JWMissing bool        `json:"jwMissing,omitempty"`
}

// Matches reports whether the patch targets the record identified by id.
func (p *Patch) Matches(id catalog.Key) bool {
	return p.ID.Equal(id) || p.SCBKey.Equal(id)
}

// Settles reports whether the patch makes automatic matching pointless,
// either by supplying the JustWatch id or by declaring it unobtainable.
func (p *Patch) Settles() bool {
	return p != nil && (p.JWID != 0 || p.JWMissing)
}

// Set is an ordered, read-only list of patches.
type Set struct {
	patches []Patch
}

// NewSet wraps patches in lookup order.
func NewSet(patches []Patch) *Set {
	return &Set{patches: patches}
}

// Len returns the number of patches.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.patches)
}

// Lookup returns the first patch targeting id.
func (s *Set) Lookup(id catalog.Key) (*Patch, bool) {
	if s == nil {
		return nil, false
	}
	for i := range s.patches {
		if s.patches[i].Matches(id) {
			return &s.patches[i], true
		}
	}
	return nil, false
}

// NeedsEnrichment applies the overlay to rec using its first matching patch.
func (s *Set) NeedsEnrichment(rec *catalog.Record) bool {
	patch, _ := s.Lookup(rec.ID)
	return NeedsEnrichment(rec, patch)
}

// NeedsEnrichment reports whether rec should be sent to the title search.
// Records without a TMDB id cannot be verified, a settling patch wins over
// the record's own state, and otherwise both JustWatch fields must be present.
func NeedsEnrichment(rec *catalog.Record, patch *Patch) bool {
	if rec == nil || !rec.HasTMDBID() {
		return false
	}
	if patch.Settles() {
		return false
	}
	return rec.JWID == 0 || rec.JWFullPath == ""
}

// Catalog loads patches from a JSON file.
type Catalog struct {
	path   string
	logger *slog.Logger
}

// NewCatalog constructs a catalog backed by the provided JSON file. An empty
// path yields a catalog that always reads as empty.
func NewCatalog(path string, logger *slog.Logger) *Catalog {
	return &Catalog{
		path:   strings.TrimSpace(path),
		logger: logging.NewComponentLogger(logger, "overrides"),
	}
}

// ReadOverrides loads every patch. A missing file reads as an empty set.
func (c *Catalog) ReadOverrides(_ context.Context) (*Set, error) {
	if c == nil || c.path == "" {
		return NewSet(nil), nil
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.logger.Debug("no override file", logging.String("path", c.path))
			return NewSet(nil), nil
		}
		return nil, fmt.Errorf("read overrides: %w", err)
	}
	patches, err := parsePatches(data)
	if err != nil {
		return nil, fmt.Errorf("parse overrides %s: %w", c.path, err)
	}
	c.logger.Info("loaded overrides", logging.String("path", c.path), logging.Int("count", len(patches)))
	return NewSet(patches), nil
}

func parsePatches(data []byte) ([]Patch, error) {
	data = bytes.TrimPrefix(data, []byte("\xEF\xBB\xBF"))
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	var patches []Patch
	// Accept either a bare array or an object with a patches field.
	if data[0] == '{' {
		var wrapper struct {
			Patches []Patch `json:"patches"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, err
		}
		patches = wrapper.Patches
	} else if err := json.Unmarshal(data, &patches); err != nil {
		return nil, err
	}
	return patches, nil
}
