package source

import "github.com/eugenenazirov/confkit/internal/storage"

// MapSource is a mutable in-memory source. It backs defaults, command-line
// flags and runtime overrides.
type MapSource struct {
	name    string
	ordinal int
	store   storage.Storage
}

// NewMapSource creates a source named name holding a copy of props.
func NewMapSource(name string, ordinal int, props map[string]string) *MapSource {
	return &MapSource{
		name:    name,
		ordinal: ordinal,
		store:   storage.NewMemoryStorage(props),
	}
}

func (s *MapSource) Name() string { return s.name }

func (s *MapSource) Ordinal() int {
	return ResolveOrdinal(s.store.Get, s.ordinal)
}

func (s *MapSource) Value(key string) (string, bool) {
	return s.store.Get(key)
}

func (s *MapSource) Properties() map[string]string {
	return s.store.Snapshot()
}

func (s *MapSource) PropertyNames() []string {
	return s.store.Keys()
}

// Set stores value under key.
func (s *MapSource) Set(key, value string) error {
	return s.store.Set(key, value)
}

// Delete removes key and reports whether it was present.
func (s *MapSource) Delete(key string) bool {
	return s.store.Delete(key)
}
