// Package provider supplies configuration sources when a configuration is
// built. Providers registered with Register are picked up by every builder that
// asks for discovered sources.
package provider

import (
	"context"
	"sync"

	"github.com/eugenenazirov/confkit/pkg/source"
)

// SourceProvider contributes configuration sources. A provider may return the
// sources it could load together with an error describing the rest.
type SourceProvider interface {
	Sources(ctx context.Context) ([]source.Source, error)
}

// Func adapts a function to SourceProvider.
type Func func(ctx context.Context) ([]source.Source, error)

// Sources calls f.
func (f Func) Sources(ctx context.Context) ([]source.Source, error) {
	return f(ctx)
}

// Static returns a provider that always yields the given sources.
func Static(sources ...source.Source) SourceProvider {
	return Func(func(context.Context) ([]source.Source, error) {
		return sources, nil
	})
}

var (
	registryMu sync.RWMutex
	registry   []SourceProvider
)

// Register adds p to the process-wide provider registry.
func Register(p SourceProvider) {
	registryMu.Lock()
	registry = append(registry, p)
	registryMu.Unlock()
}

// Registered returns the registered providers in registration order.
func Registered() []SourceProvider {
	registryMu.RLock()
	defer registryMu.RUnlock()

	out := make([]SourceProvider, len(registry))
	copy(out, registry)
	return out
}

// Reset empties the registry. It exists for tests that register providers.
func Reset() {
	registryMu.Lock()
	registry = nil
	registryMu.Unlock()
}
