package source

import (
	"errors"
	"sort"
	"strconv"
	"strings"
)

// OrdinalKey is the property a source may define to override its default ordinal.
const OrdinalKey = "config_ordinal"

// Default ordinals of the built-in sources.
const (
	OverridesOrdinal = 500
	FlagsOrdinal     = 400
	EnvOrdinal       = 300
	DatabaseOrdinal  = 200
	FileOrdinal      = 100
	DefaultOrdinal   = FileOrdinal
)

var (
	// ErrInvalidDocument is returned when a document cannot be flattened into properties.
	ErrInvalidDocument = errors.New("configuration document must be a mapping")
	// ErrNotReloadable is returned by Reload on sources without a backing file.
	ErrNotReloadable = errors.New("source has no backing file")
)

// Source is a named, ranked provider of configuration properties.
type Source interface {
	Name() string
	Ordinal() int
	Value(key string) (string, bool)
	// Properties returns a copy of every property the source holds.
	Properties() map[string]string
	// PropertyNames returns the keys of the source in sorted order.
	PropertyNames() []string
}

// Reloadable is implemented by sources backed by a file that can be re-read.
type Reloadable interface {
	Source
	Path() string
	Reload() error
}

// ResolveOrdinal returns the config_ordinal value found through lookup, or def
// when it is absent or not an integer.
func ResolveOrdinal(lookup func(string) (string, bool), def int) int {
	raw, ok := lookup(OrdinalKey)
	if !ok {
		return def
	}
	ordinal, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	return ordinal
}

// Sort orders sources by ordinal, highest first. Equal ordinals are ordered
// by name. Each source's Ordinal is read once.
func Sort(sources []Source) {
	type ranked struct {
		src     Source
		ordinal int
	}
	all := make([]ranked, len(sources))
	for i, s := range sources {
		all[i] = ranked{src: s, ordinal: s.Ordinal()}
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].ordinal != all[j].ordinal {
			return all[i].ordinal > all[j].ordinal
		}
		return all[i].src.Name() < all[j].src.Name()
	})
	for i := range all {
		sources[i] = all[i].src
	}
}

func sortedKeys(props map[string]string) []string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
