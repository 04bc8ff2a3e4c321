package confkit

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/eugenenazirov/confkit/pkg/convert"
	"github.com/eugenenazirov/confkit/pkg/source"
)

var (
	// ErrConfigRegistered is returned by RegisterConfig when a configuration is already installed.
	ErrConfigRegistered = errors.New("a configuration is already registered")
)

var (
	globalMu  sync.Mutex
	global    Config
	globalLog = zap.NewNop()
)

// SetLogger sets the logger used when GetConfig builds the process-wide configuration.
func SetLogger(logger *zap.Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if logger != nil {
		globalLog = logger
	}
}

// GetConfig returns the process-wide configuration, building it from the
// default and discovered sources on first use. A provider or file that fails
// to load is logged and the configuration is built from the sources that did
// load.
func GetConfig() Config {
	globalMu.Lock()
	defer globalMu.Unlock()

	if global != nil {
		return global
	}

	cfg, err := NewBuilder().
		AddDefaultSources().
		AddDiscoveredSources().
		SkipFailedProviders().
		WithLogger(globalLog).
		Build(context.Background())
	if err != nil {
		globalLog.Error("building default configuration failed, using environment only", zap.Error(err))
		cfg = newConfig([]source.Source{source.NewEnvSource()}, convert.NewRegistry())
	}
	global = cfg
	return global
}

// RegisterConfig installs cfg as the process-wide configuration.
func RegisterConfig(cfg Config) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if global != nil {
		return ErrConfigRegistered
	}
	global = cfg
	return nil
}

// ReleaseConfig drops cfg if it is the process-wide configuration, so the
// next GetConfig builds a fresh one.
func ReleaseConfig(cfg Config) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if global == cfg {
		global = nil
	}
}
