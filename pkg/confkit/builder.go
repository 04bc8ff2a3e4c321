package confkit

import (
	"context"
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/eugenenazirov/confkit/pkg/convert"
	"github.com/eugenenazirov/confkit/pkg/provider"
	"github.com/eugenenazirov/confkit/pkg/source"
)

// Builder assembles a Config.
type Builder struct {
	defaults   bool
	discovered bool
	lenient    bool
	sources    []source.Source
	providers  []provider.SourceProvider
	converters *convert.Registry
	logger     *zap.Logger
}

// NewBuilder returns an empty builder with the built-in converters.
func NewBuilder() *Builder {
	return &Builder{
		converters: convert.NewRegistry(),
		logger:     zap.NewNop(),
	}
}

// AddDefaultSources adds the environment and the YAML files found in the
// default configuration directories.
func (b *Builder) AddDefaultSources() *Builder {
	b.defaults = true
	return b
}

// AddDiscoveredSources adds the sources of every registered provider.
func (b *Builder) AddDiscoveredSources() *Builder {
	b.discovered = true
	return b
}

// SkipFailedProviders makes Build log a failing provider and keep whatever
// sources it and the other providers did return, instead of failing.
func (b *Builder) SkipFailedProviders() *Builder {
	b.lenient = true
	return b
}

// WithSources adds explicit sources.
func (b *Builder) WithSources(sources ...source.Source) *Builder {
	b.sources = append(b.sources, sources...)
	return b
}

// WithProviders adds providers consulted at Build time.
func (b *Builder) WithProviders(providers ...provider.SourceProvider) *Builder {
	b.providers = append(b.providers, providers...)
	return b
}

// WithConverter registers a converter for typ.
func (b *Builder) WithConverter(typ reflect.Type, priority int, fn convert.Converter) *Builder {
	b.converters.Register(typ, priority, fn)
	return b
}

// WithLogger sets the logger used while building.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// Build collects the sources and returns the Config. A failing provider fails
// the build unless SkipFailedProviders was called.
func (b *Builder) Build(ctx context.Context) (Config, error) {
	sources := make([]source.Source, 0, len(b.sources)+2)
	sources = append(sources, b.sources...)

	providers := make([]provider.SourceProvider, 0, len(b.providers)+2)
	if b.defaults {
		sources = append(sources, source.NewEnvSource())
		providers = append(providers, provider.NewYAMLDirProvider(provider.DefaultDirs()...))
	}
	if b.discovered {
		providers = append(providers, provider.Registered()...)
	}
	providers = append(providers, b.providers...)

	for _, p := range providers {
		found, err := p.Sources(ctx)
		if err != nil {
			if !b.lenient {
				return nil, fmt.Errorf("collect sources: %w", err)
			}
			b.logger.Warn("configuration provider failed, skipping its failed sources",
				zap.Int("loaded", len(found)),
				zap.Error(err),
			)
		}
		sources = append(sources, found...)
	}

	cfg := newConfig(sources, b.converters.Clone())
	for _, s := range cfg.sources {
		b.logger.Debug("configuration source added",
			zap.String("source", s.Name()),
			zap.Int("ordinal", s.Ordinal()),
		)
	}
	return cfg, nil
}
