package confkit

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/eugenenazirov/confkit/pkg/convert"
	"github.com/eugenenazirov/confkit/pkg/source"
)

var (
	// ErrNoSuchElement is returned when no source holds the requested key.
	ErrNoSuchElement = errors.New("no configured value for key")
)

// Config is a resolved view over an ordered set of sources.
type Config interface {
	// Value returns the value of key from the highest-ranked source holding it.
	Value(key string) (string, error)
	OptionalValue(key string) (string, bool)
	// Values splits the value of key on unescaped commas.
	Values(key string) ([]string, error)
	// Source returns the source the value of key resolves from.
	Source(key string) (source.Source, bool)
	PropertyNames() []string
	// Sources returns the sources ordered by ordinal, highest first.
	Sources() []source.Source
	Converters() *convert.Registry
}

type config struct {
	mu sync.RWMutex
	// sources is replaced, never reordered in place, so callers may keep a
	// returned slice.
	sources    []source.Source
	ordinals   []int
	converters *convert.Registry
}

func newConfig(sources []source.Source, converters *convert.Registry) *config {
	sorted := make([]source.Source, len(sources))
	copy(sorted, sources)
	source.Sort(sorted)
	return &config{sources: sorted, ordinals: ordinalsOf(sorted), converters: converters}
}

func ordinalsOf(sources []source.Source) []int {
	out := make([]int, len(sources))
	for i, s := range sources {
		out[i] = s.Ordinal()
	}
	return out
}

func (c *config) Value(key string) (string, error) {
	v, ok := c.OptionalValue(key)
	if !ok {
		return "", fmt.Errorf("%w %q", ErrNoSuchElement, key)
	}
	return v, nil
}

func (c *config) OptionalValue(key string) (string, bool) {
	s, ok := c.Source(key)
	if !ok {
		return "", false
	}
	return s.Value(key)
}

func (c *config) Values(key string) ([]string, error) {
	raw, err := c.Value(key)
	if err != nil {
		return nil, err
	}
	return convert.SplitList(raw), nil
}

func (c *config) Source(key string) (source.Source, bool) {
	for _, s := range c.orderedSources() {
		if _, ok := s.Value(key); ok {
			return s, true
		}
	}
	return nil, false
}

func (c *config) PropertyNames() []string {
	seen := make(map[string]struct{})
	for _, s := range c.orderedSources() {
		for _, name := range s.PropertyNames() {
			seen[name] = struct{}{}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *config) Sources() []source.Source {
	ordered := c.orderedSources()
	out := make([]source.Source, len(ordered))
	copy(out, ordered)
	return out
}

func (c *config) Converters() *convert.Registry {
	return c.converters
}

// orderedSources returns the cached resolution order. A source's
// config_ordinal can change at runtime, so every call reads each ordinal once
// and re-sorts only when one of them moved.
func (c *config) orderedSources() []source.Source {
	c.mu.RLock()
	sources, ordinals := c.sources, c.ordinals
	c.mu.RUnlock()

	if !ordinalsChanged(sources, ordinals) {
		return sources
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if ordinalsChanged(c.sources, c.ordinals) {
		sorted := make([]source.Source, len(c.sources))
		copy(sorted, c.sources)
		source.Sort(sorted)
		c.sources, c.ordinals = sorted, ordinalsOf(sorted)
	}
	return c.sources
}

func ordinalsChanged(sources []source.Source, ordinals []int) bool {
	for i, s := range sources {
		if s.Ordinal() != ordinals[i] {
			return true
		}
	}
	return false
}

// Properties returns every effective property of cfg. The source order is
// read once for the whole call.
func Properties(cfg Config) map[string]string {
	ordered := cfg.Sources()
	names := cfg.PropertyNames()
	out := make(map[string]string, len(names))
	for _, name := range names {
		for _, s := range ordered {
			if v, ok := s.Value(name); ok {
				out[name] = v
				break
			}
		}
	}
	return out
}
