package storage

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrInvalidKey indicates a property key is empty or only whitespace.
	ErrInvalidKey = errors.New("property key must not be empty")
)

// Storage provides access to a set of configuration properties.
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string) bool
	Replace(props map[string]string) error
	Snapshot() map[string]string
	Keys() []string
	Len() int
}

// MemoryStorage keeps properties in-memory and guards access with a RWMutex.
type MemoryStorage struct {
	mu    sync.RWMutex
	props map[string]string
}

// NewMemoryStorage initialises storage with a copy of the given properties.
// Entries with an empty key are dropped.
func NewMemoryStorage(initial map[string]string) *MemoryStorage {
	props := make(map[string]string, len(initial))
	for k, v := range initial {
		if validKey(k) {
			props[k] = v
		}
	}
	return &MemoryStorage{props: props}
}

// Get returns the value stored under key.
func (s *MemoryStorage) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.props[key]
	return v, ok
}

// Set stores value under key.
func (s *MemoryStorage) Set(key, value string) error {
	if !validKey(key) {
		return ErrInvalidKey
	}

	s.mu.Lock()
	s.props[key] = value
	s.mu.Unlock()

	return nil
}

// Delete removes key and reports whether it was present.
func (s *MemoryStorage) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.props[key]; !ok {
		return false
	}
	delete(s.props, key)
	return true
}

// Replace swaps the whole property set. Nothing changes when any key is invalid.
func (s *MemoryStorage) Replace(props map[string]string) error {
	next := make(map[string]string, len(props))
	for k, v := range props {
		if !validKey(k) {
			return ErrInvalidKey
		}
		next[k] = v
	}

	s.mu.Lock()
	s.props = next
	s.mu.Unlock()

	return nil
}

// Snapshot returns a defensive copy of the stored properties.
func (s *MemoryStorage) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.props))
	for k, v := range s.props {
		out[k] = v
	}
	return out
}

// Keys returns the stored keys in sorted order.
func (s *MemoryStorage) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.props))
	for k := range s.props {
		keys = append(keys, k)
	}
	s.mu.RUnlock()

	sort.Strings(keys)
	return keys
}

// Len returns the number of stored properties.
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.props)
}

func validKey(key string) bool {
	return strings.TrimSpace(key) != ""
}
