// Package convert turns raw property strings into typed values.
//
// Converters are registered per target type with a priority. When several
// converters exist for one type the highest priority wins; on a tie the most
// recently registered converter wins.
package convert

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultPriority is the priority of built-in converters.
const DefaultPriority = 100

var (
	// ErrNoConverter is returned when no converter is registered for the target type.
	ErrNoConverter = errors.New("no converter registered for type")
	// ErrConversion is returned when a raw value cannot be converted.
	ErrConversion = errors.New("cannot convert value")
)

// Converter converts a raw property value.
type Converter func(raw string) (any, error)

type entry struct {
	priority int
	fn       Converter
}

// Registry holds converters by target type. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	converters map[reflect.Type]entry
}

// NewRegistry returns a registry holding the built-in converters.
func NewRegistry() *Registry {
	r := &Registry{converters: make(map[reflect.Type]entry)}
	r.Register(reflect.TypeFor[string](), DefaultPriority, func(raw string) (any, error) { return raw, nil })
	r.Register(reflect.TypeFor[bool](), DefaultPriority, func(raw string) (any, error) { return ParseBool(raw) })
	r.Register(reflect.TypeFor[int](), DefaultPriority, func(raw string) (any, error) {
		return strconv.Atoi(strings.TrimSpace(raw))
	})
	r.Register(reflect.TypeFor[int64](), DefaultPriority, func(raw string) (any, error) {
		return strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	})
	r.Register(reflect.TypeFor[uint](), DefaultPriority, func(raw string) (any, error) {
		v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 0)
		return uint(v), err
	})
	r.Register(reflect.TypeFor[float64](), DefaultPriority, func(raw string) (any, error) {
		return strconv.ParseFloat(strings.TrimSpace(raw), 64)
	})
	r.Register(reflect.TypeFor[time.Duration](), DefaultPriority, func(raw string) (any, error) {
		return time.ParseDuration(strings.TrimSpace(raw))
	})
	r.Register(reflect.TypeFor[*url.URL](), DefaultPriority, func(raw string) (any, error) {
		return url.Parse(strings.TrimSpace(raw))
	})
	return r
}

// Register adds fn for typ unless a converter with a higher priority is already present.
func (r *Registry) Register(typ reflect.Type, priority int, fn Converter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.converters[typ]; ok && cur.priority > priority {
		return
	}
	r.converters[typ] = entry{priority: priority, fn: fn}
}

// Clone returns an independent copy of the registry.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := &Registry{converters: make(map[reflect.Type]entry, len(r.converters))}
	for k, v := range r.converters {
		out.converters[k] = v
	}
	return out
}

// Convert converts raw into a value of type typ.
func (r *Registry) Convert(raw string, typ reflect.Type) (any, error) {
	r.mu.RLock()
	e, ok := r.converters[typ]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoConverter, typ)
	}

	v, err := e.fn(raw)
	if err != nil {
		return nil, fmt.Errorf("%w %q to %s: %v", ErrConversion, raw, typ, err)
	}
	return v, nil
}

// To converts raw into a T using r.
func To[T any](r *Registry, raw string) (T, error) {
	var zero T
	v, err := r.Convert(raw, reflect.TypeFor[T]())
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w %q: converter returned %T, want %T", ErrConversion, raw, v, zero)
	}
	return out, nil
}

// ParseBool accepts true/1/yes/y/on and false/0/no/n/off, case-insensitive.
func ParseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes", "y", "on":
		return true, nil
	case "false", "0", "no", "n", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", raw)
}

// SplitList splits raw on commas not preceded by a backslash and unescapes
// "\," and "\\" inside items. Any other backslash is kept. Empty items are
// dropped.
func SplitList(raw string) []string {
	var (
		items []string
		cur   strings.Builder
	)
	flush := func() {
		if item := strings.TrimSpace(cur.String()); item != "" {
			items = append(items, item)
		}
		cur.Reset()
	}

	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c == '\\' && i+1 < len(raw) && (raw[i+1] == ',' || raw[i+1] == '\\'):
			cur.WriteByte(raw[i+1])
			i++
		case c == ',':
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return items
}
