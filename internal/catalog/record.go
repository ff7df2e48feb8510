package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Record is one movie in the local catalog. Only the fields the enrichment
// pipeline reads or writes are modelled; every other member of the stored JSON
// object is carried through untouched.
//
// A decoded record remembers its original member order and raw values. On
// encode, members keep that order, and modelled fields whose value was not
// changed are written back byte for byte, so explicit false or null values
// survive a round trip. Modelled fields that were absent and are now set are
// appended after the original members.
type Record struct {
	ID         Key
	Tconst     string
	Title      string
	TMDBID     int64
	JWID       int64
	JWFullPath string
	JWMissing  bool

	members []member
	loaded  *Record
}

type member struct {
	name string
	raw  json.RawMessage
}

const (
	fieldID         = "id"
	fieldTconst     = "tconst"
	fieldTitle      = "title"
	fieldTMDBID     = "tmdbId"
	fieldJWID       = "jwId"
	fieldJWFullPath = "jwFullPath"
	fieldJWMissing  = "jwMissing"
)

// fieldOrder is the encoding order for modelled fields a record did not carry
// when it was decoded.
var fieldOrder = []string{
	fieldID,
	fieldTconst,
	fieldTitle,
	fieldTMDBID,
	fieldJWID,
	fieldJWFullPath,
	fieldJWMissing,
}

func isKnownField(name string) bool {
	for _, known := range fieldOrder {
		if name == known {
			return true
		}
	}
	return false
}

// HasTMDBID reports whether the record carries a cross-reference identifier.
func (r *Record) HasTMDBID() bool {
	return r.TMDBID != 0
}

// Enriched reports whether both JustWatch fields are populated.
func (r *Record) Enriched() bool {
	return r.JWID != 0 && r.JWFullPath != ""
}

// Label returns the identifier used in operator-facing output: the IMDb tconst
// when known, otherwise the catalog id.
func (r *Record) Label() string {
	if r.Tconst != "" {
		return r.Tconst
	}
	return r.ID.String()
}

// InvalidateEnrichment clears every JustWatch field so the next run
// re-evaluates the record from scratch.
func InvalidateEnrichment(r *Record) {
	if r == nil {
		return
	}
	r.JWID = 0
	r.JWFullPath = ""
	r.JWMissing = false
}

// UnmarshalJSON implements json.Unmarshaler. When a member name repeats, the
// last value wins and the first position is kept.
func (r *Record) UnmarshalJSON(data []byte) error {
	members, err := decodeMembers(data)
	if err != nil {
		return err
	}
	*r = Record{members: members}
	for _, m := range members {
		if bytes.Equal(bytes.TrimSpace(m.raw), []byte("null")) {
			continue
		}
		var dst any
		switch m.name {
		case fieldID:
			dst = &r.ID
		case fieldTconst:
			dst = &r.Tconst
		case fieldTitle:
			dst = &r.Title
		case fieldTMDBID:
			dst = &r.TMDBID
		case fieldJWID:
			dst = &r.JWID
		case fieldJWFullPath:
			dst = &r.JWFullPath
		case fieldJWMissing:
			dst = &r.JWMissing
		default:
			continue
		}
		if err := json.Unmarshal(m.raw, dst); err != nil {
			return fmt.Errorf("field %s: %w", m.name, err)
		}
	}
	loaded := r.fields()
	r.loaded = &loaded
	return nil
}

// decodeMembers reads the top-level members of a JSON object in source order.
func decodeMembers(data []byte) ([]member, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("catalog record must be a JSON object")
	}
	var members []member
	index := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v in catalog record", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		if i, dup := index[name]; dup {
			members[i].raw = raw
			continue
		}
		index[name] = len(members)
		members = append(members, member{name: name, raw: raw})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return members, nil
}

// fields copies the modelled fields without the decode bookkeeping.
func (r Record) fields() Record {
	return Record{
		ID:         r.ID,
		Tconst:     r.Tconst,
		Title:      r.Title,
		TMDBID:     r.TMDBID,
		JWID:       r.JWID,
		JWFullPath: r.JWFullPath,
		JWMissing:  r.JWMissing,
	}
}

// value returns the encodable value of a modelled field and whether it should
// be written at all. Zero values are omitted, except the title.
func (r Record) value(name string) (any, bool) {
	switch name {
	case fieldID:
		return r.ID, !r.ID.IsZero()
	case fieldTconst:
		return r.Tconst, r.Tconst != ""
	case fieldTitle:
		return r.Title, true
	case fieldTMDBID:
		return r.TMDBID, r.TMDBID != 0
	case fieldJWID:
		return r.JWID, r.JWID != 0
	case fieldJWFullPath:
		return r.JWFullPath, r.JWFullPath != ""
	case fieldJWMissing:
		return r.JWMissing, r.JWMissing
	}
	return nil, false
}

// unchanged reports whether a modelled field still holds its decoded value.
func (r Record) unchanged(name string) bool {
	if r.loaded == nil {
		return false
	}
	old := r.loaded
	switch name {
	case fieldID:
		return r.ID.String() == old.ID.String()
	case fieldTconst:
		return r.Tconst == old.Tconst
	case fieldTitle:
		return r.Title == old.Title
	case fieldTMDBID:
		return r.TMDBID == old.TMDBID
	case fieldJWID:
		return r.JWID == old.JWID
	case fieldJWFullPath:
		return r.JWFullPath == old.JWFullPath
	case fieldJWMissing:
		return r.JWMissing == old.JWMissing
	}
	return false
}

// MarshalJSON implements json.Marshaler.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	writeRaw := func(name string, raw []byte) {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		key, _ := json.Marshal(name)
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(raw)
	}
	writeField := func(name string) error {
		value, ok := r.value(name)
		if !ok {
			return nil
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
		writeRaw(name, encoded)
		return nil
	}

	seen := make(map[string]bool, len(r.members))
	for _, m := range r.members {
		seen[m.name] = true
		if !isKnownField(m.name) || r.unchanged(m.name) {
			writeRaw(m.name, m.raw)
			continue
		}
		if err := writeField(m.name); err != nil {
			return nil, err
		}
	}
	for _, name := range fieldOrder {
		if seen[name] {
			continue
		}
		if err := writeField(name); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
