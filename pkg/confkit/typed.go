package confkit

import (
	"fmt"

	"github.com/eugenenazirov/confkit/pkg/convert"
)

// Get returns the value of key converted to T.
func Get[T any](cfg Config, key string) (T, error) {
	var zero T
	raw, err := cfg.Value(key)
	if err != nil {
		return zero, err
	}
	v, err := convert.To[T](cfg.Converters(), raw)
	if err != nil {
		return zero, fmt.Errorf("key %q: %w", key, err)
	}
	return v, nil
}

// Lookup is Get for optional keys: a missing key reports false without error.
func Lookup[T any](cfg Config, key string) (T, bool, error) {
	var zero T
	raw, ok := cfg.OptionalValue(key)
	if !ok {
		return zero, false, nil
	}
	v, err := convert.To[T](cfg.Converters(), raw)
	if err != nil {
		return zero, true, fmt.Errorf("key %q: %w", key, err)
	}
	return v, true, nil
}

// GetOr returns the converted value of key, or def when the key is missing or
// does not convert.
func GetOr[T any](cfg Config, key string, def T) T {
	v, ok, err := Lookup[T](cfg, key)
	if !ok || err != nil {
		return def
	}
	return v
}

// GetList splits the value of key and converts every item to T.
func GetList[T any](cfg Config, key string) ([]T, error) {
	items, err := cfg.Values(key)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		v, err := convert.To[T](cfg.Converters(), item)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		out = append(out, v)
	}
	return out, nil
}
