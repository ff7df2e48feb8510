package catalog

import (
	"bytes"
	"encoding/json"
	"reflect"
)

// Key is an opaque catalog identifier. Catalog files use plain strings, numbers,
// and composite values (arrays or objects) interchangeably, so keys compare by
// decoded structure rather than by their raw bytes.
type Key struct {
	raw   json.RawMessage
	value any
}

// NewKey builds a key from any JSON-encodable value.
func NewKey(value any) (Key, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return Key{}, err
	}
	var k Key
	if err := k.UnmarshalJSON(data); err != nil {
		return Key{}, err
	}
	return k, nil
}

// ParseKey decodes a key from its JSON text. Bare words that are not valid JSON
// are treated as strings so CLI users can type `tt0111161` instead of `"tt0111161"`.
func ParseKey(text string) (Key, error) {
	var k Key
	if err := k.UnmarshalJSON([]byte(text)); err == nil {
		return k, nil
	}
	return NewKey(text)
}

// MustKey is NewKey for literals known to encode.
func MustKey(value any) Key {
	k, err := NewKey(value)
	if err != nil {
		panic(err)
	}
	return k
}

// IsZero reports whether the key is absent (missing or JSON null).
func (k Key) IsZero() bool {
	return k.value == nil
}

// Equal compares two keys structurally. Absent keys never match anything,
// including other absent keys.
func (k Key) Equal(other Key) bool {
	if k.IsZero() || other.IsZero() {
		return false
	}
	return reflect.DeepEqual(k.value, other.value)
}

// String returns the compact JSON form of the key.
func (k Key) String() string {
	if k.IsZero() {
		return "null"
	}
	return string(k.raw)
}

// MarshalJSON implements json.Marshaler.
func (k Key) MarshalJSON() ([]byte, error) {
	if k.raw == nil {
		return []byte("null"), nil
	}
	return k.raw, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (k *Key) UnmarshalJSON(data []byte) error {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	if value == nil {
		*k = Key{}
		return nil
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, data); err != nil {
		return err
	}
	k.raw = json.RawMessage(compact.Bytes())
	k.value = value
	return nil
}
