package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Key is the structural identity of a query: an operation name plus its
// normalized arguments. Two queries with equal Keys share one entry.
//
// Key is comparable and may be used as a map key.
type Key struct {
	Operation string
	Args      string // canonical JSON
}

// NewKey builds a Key from an operation name and its arguments.
//
// Args are normalized through JSON, so a struct and a map carrying the same
// fields produce the same Key, and map ordering never matters.
func NewKey(operation string, args any) (Key, error) {
	normalized, err := normalize(args)
	if err != nil {
		return Key{}, err
	}
	return buildKey(operation, normalized)
}

// NewKeyIgnoring builds a Key like NewKey but drops the named top-level
// argument fields first. Paginated collections use it to exclude the cursor
// so that every page maps to the same entry.
func NewKeyIgnoring(operation string, args any, ignore ...string) (Key, error) {
	normalized, err := normalize(args)
	if err != nil {
		return Key{}, err
	}
	if m, ok := normalized.(map[string]any); ok {
		for _, field := range ignore {
			delete(m, field)
		}
	}
	return buildKey(operation, normalized)
}

// MustKey is like NewKey but panics on error. Intended for arguments that are
// known to be JSON-encodable, such as plain string maps.
func MustKey(operation string, args any) Key {
	k, err := NewKey(operation, args)
	if err != nil {
		panic(err)
	}
	return k
}

func buildKey(operation string, normalized any) (Key, error) {
	canonical, err := canonicalize(normalized)
	if err != nil {
		return Key{}, fmt.Errorf("cache: failed to canonicalize args: %w", err)
	}
	k := Key{Operation: operation, Args: string(canonical)}
	if err := k.Validate(); err != nil {
		return Key{}, err
	}
	return k, nil
}

// String renders the key as operation(args).
func (k Key) String() string {
	return k.Operation + "(" + k.Args + ")"
}

// IsZero reports whether k is the zero Key.
func (k Key) IsZero() bool {
	return k == Key{}
}

// Validate checks that the key can be stored.
func (k Key) Validate() error {
	if strings.TrimSpace(k.Operation) == "" {
		return ErrInvalidKey
	}
	if strings.ContainsAny(k.Operation, "\n\r") {
		return ErrInvalidKey
	}
	if len(k.Operation)+len(k.Args) > MaxKeyLength {
		return ErrKeyTooLong
	}
	return nil
}

// normalize round-trips v through JSON into plain maps, slices and scalars.
func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("cache: failed to encode args: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("cache: failed to decode args: %w", err)
	}
	return out, nil
}

// canonicalize produces a deterministic JSON representation with map keys sorted.
func canonicalize(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return []byte("null"), nil
	case map[string]any:
		return canonicalizeMap(val)
	case []any:
		return canonicalizeSlice(val)
	default:
		return json.Marshal(v)
	}
}

func canonicalizeMap(m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := []byte("{")
	for i, k := range keys {
		if i > 0 {
			result = append(result, ',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		result = append(result, keyBytes...)
		result = append(result, ':')

		valBytes, err := canonicalize(m[k])
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	return append(result, '}'), nil
}

func canonicalizeSlice(s []any) ([]byte, error) {
	result := []byte("[")
	for i, v := range s {
		if i > 0 {
			result = append(result, ',')
		}
		valBytes, err := canonicalize(v)
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	return append(result, ']'), nil
}
